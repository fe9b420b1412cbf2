package middleware

import (
	"sync"
	"time"
)

// RateLimiter 滑动窗口内存限流器
type RateLimiter struct {
	requests int
	window   time.Duration
	clients  map[string][]time.Time
	mu       sync.Mutex
	now      func() time.Time
}

// NewRateLimiter 创建限流器
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: requests,
		window:   window,
		clients:  make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.window)

	valid := rl.clients[client][:0]
	for _, t := range rl.clients[client] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}
	if len(valid) >= rl.requests {
		rl.clients[client] = valid
		return false
	}
	rl.clients[client] = append(valid, now)

	// 顺带清理空闲客户端
	if len(rl.clients) > 1024 {
		for k, v := range rl.clients {
			if len(v) == 0 || !v[len(v)-1].After(windowStart) {
				delete(rl.clients, k)
			}
		}
	}
	return true
}
