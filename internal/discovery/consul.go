package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

// consulAgent *api.Agent 中用到的方法
type consulAgent interface {
	ServiceRegister(service *api.AgentServiceRegistration) error
	ServiceDeregister(serviceID string) error
}

// ConsulRegistrar 通过Consul agent注册，并由Consul轮询HTTP健康检查
type ConsulRegistrar struct {
	agent  consulAgent
	ttl    time.Duration
	logger *zap.Logger

	mu        sync.Mutex
	serviceID string
}

// NewConsulRegistrar 创建Consul注册器
func NewConsulRegistrar(address string, ttl time.Duration, logger *zap.Logger) (*ConsulRegistrar, error) {
	cfg := api.DefaultConfig()
	if address != "" {
		cfg.Address = address
	}
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Consul client: %w", err)
	}
	return newConsulRegistrar(client.Agent(), ttl, logger), nil
}

func newConsulRegistrar(agent consulAgent, ttl time.Duration, logger *zap.Logger) *ConsulRegistrar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsulRegistrar{agent: agent, ttl: ttl, logger: logger}
}

func (r *ConsulRegistrar) Register(ctx context.Context, inst Instance) error {
	registration := &api.AgentServiceRegistration{
		ID:      inst.ID,
		Name:    inst.Name,
		Tags:    inst.Tags,
		Address: inst.Address,
		Port:    inst.Port,
		Meta:    inst.Meta,
		Check: &api.AgentServiceCheck{
			HTTP:                           inst.Health,
			Interval:                       "10s",
			Timeout:                        "3s",
			DeregisterCriticalServiceAfter: r.ttl.String(),
		},
	}
	if err := r.agent.ServiceRegister(registration); err != nil {
		return fmt.Errorf("failed to register service with Consul: %w", err)
	}

	r.mu.Lock()
	r.serviceID = inst.ID
	r.mu.Unlock()

	r.logger.Info("Service registered with Consul",
		zap.String("service_id", inst.ID),
		zap.String("address", inst.Address),
		zap.Int("port", inst.Port))
	return nil
}

func (r *ConsulRegistrar) Deregister(ctx context.Context) error {
	r.mu.Lock()
	id := r.serviceID
	r.serviceID = ""
	r.mu.Unlock()
	if id == "" {
		return nil
	}

	if err := r.agent.ServiceDeregister(id); err != nil {
		return fmt.Errorf("failed to deregister service from Consul: %w", err)
	}
	r.logger.Info("Service deregistered from Consul", zap.String("service_id", id))
	return nil
}
