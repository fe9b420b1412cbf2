package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// ServiceKey etcd中实例的键：/services/{name}/instances/{id}
func ServiceKey(inst Instance) string {
	return fmt.Sprintf("/services/%s/instances/%s", inst.Name, inst.ID)
}

// EtcdRegistrar 以租约写入实例信息，进程退出或续约中断后键自动过期
type EtcdRegistrar struct {
	kv     clientv3.KV
	lease  clientv3.Lease
	closer func() error
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	leaseID clientv3.LeaseID
	key     string
	cancel  context.CancelFunc
}

// NewEtcdRegistrar 创建etcd注册器
func NewEtcdRegistrar(endpoints []string, ttl time.Duration, logger *zap.Logger) (*EtcdRegistrar, error) {
	if len(endpoints) == 0 {
		endpoints = []string{"http://localhost:2379"}
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	r := newEtcdRegistrar(client.KV, client.Lease, ttl, logger)
	r.closer = client.Close
	return r, nil
}

func newEtcdRegistrar(kv clientv3.KV, lease clientv3.Lease, ttl time.Duration, logger *zap.Logger) *EtcdRegistrar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EtcdRegistrar{kv: kv, lease: lease, ttl: ttl, logger: logger}
}

func (r *EtcdRegistrar) Register(ctx context.Context, inst Instance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("failed to marshal service info: %w", err)
	}

	seconds := int64(r.ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	grant, err := r.lease.Grant(ctx, seconds)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	key := ServiceKey(inst)
	if _, err := r.kv.Put(ctx, key, string(data), clientv3.WithLease(grant.ID)); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	// 续约随注册器生命周期，不能绑定调用方的ctx
	kaCtx, cancel := context.WithCancel(context.Background())
	keepAlive, err := r.lease.KeepAlive(kaCtx, grant.ID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to keep lease alive: %w", err)
	}

	r.mu.Lock()
	r.leaseID, r.key, r.cancel = grant.ID, key, cancel
	r.mu.Unlock()

	go func() {
		for ka := range keepAlive {
			r.logger.Debug("Service lease kept alive",
				zap.String("service_id", inst.ID),
				zap.Int64("lease_id", int64(ka.ID)))
		}
		if kaCtx.Err() == nil {
			r.logger.Warn("Service lease keep-alive stopped", zap.String("key", key))
		}
	}()

	r.logger.Info("Service registered with etcd",
		zap.String("service_id", inst.ID),
		zap.String("key", key),
		zap.Int64("ttl_seconds", seconds))
	return nil
}

func (r *EtcdRegistrar) Deregister(ctx context.Context) error {
	r.mu.Lock()
	leaseID, key, cancel := r.leaseID, r.key, r.cancel
	r.leaseID, r.key, r.cancel = 0, "", nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var err error
	switch {
	case leaseID != 0:
		// 撤销租约会同时删除键
		_, err = r.lease.Revoke(ctx, leaseID)
	case key != "":
		_, err = r.kv.Delete(ctx, key)
	}
	if err != nil {
		return fmt.Errorf("failed to deregister service from etcd: %w", err)
	}
	if key != "" {
		r.logger.Info("Service deregistered from etcd", zap.String("key", key))
	}

	if r.closer != nil {
		closeErr := r.closer()
		r.closer = nil
		return closeErr
	}
	return nil
}
