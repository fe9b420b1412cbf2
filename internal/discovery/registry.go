// Package discovery 把门户实例注册到Consul或etcd，供网关发现。
package discovery

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aihub/support-portal/internal/config"
	"go.uber.org/zap"
)

// HealthPath 注册中心探测的健康检查路径
const HealthPath = "/api/health"

// Instance 一个门户实例的注册信息
type Instance struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Address string            `json:"address"`
	Port    int               `json:"port"`
	Health  string            `json:"health_check"`
	Tags    []string          `json:"tags"`
	Meta    map[string]string `json:"meta"`
}

// NewInstance 由服务配置构造注册信息
func NewInstance(cfg *config.Config, version string) (Instance, error) {
	port, err := strconv.Atoi(cfg.Server.Port)
	if err != nil {
		return Instance{}, fmt.Errorf("invalid server port %q: %w", cfg.Server.Port, err)
	}
	host := cfg.Discovery.ServiceHost
	if host == "" {
		host = "localhost"
	}
	name := cfg.Discovery.ServiceName
	if name == "" {
		name = "support-portal"
	}
	return Instance{
		ID:      fmt.Sprintf("%s-%s-%d", name, host, port),
		Name:    name,
		Address: host,
		Port:    port,
		Health:  fmt.Sprintf("http://%s:%d%s", host, port, HealthPath),
		Tags:    []string{"rag", "beego", cfg.Server.Env},
		Meta: map[string]string{
			"version":        version,
			"env":            cfg.Server.Env,
			"corpus_backend": cfg.RAG.CorpusBackend,
		},
	}, nil
}

// Registrar 服务注册中心
type Registrar interface {
	Register(ctx context.Context, inst Instance) error
	Deregister(ctx context.Context) error
}

// Noop 未启用服务注册
type Noop struct{}

func (Noop) Register(ctx context.Context, inst Instance) error { return nil }
func (Noop) Deregister(ctx context.Context) error              { return nil }

// New 按discovery.provider创建注册器
func New(cfg config.DiscoveryConfig, logger *zap.Logger) (Registrar, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	switch cfg.Provider {
	case "", "none":
		return Noop{}, nil
	case "consul":
		return NewConsulRegistrar(cfg.ConsulAddress, ttl, logger)
	case "etcd":
		return NewEtcdRegistrar(cfg.EtcdEndpoints, ttl, logger)
	default:
		return nil, fmt.Errorf("unknown discovery provider %q", cfg.Provider)
	}
}
