// Package security decides which inbound connections the node accepts.
package security

import (
	"net"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Filter 连接过滤器接口
type Filter interface {
	ShouldAllow(addr string) bool
	GetName() string
}

// BlacklistFilter 黑名单过滤器
type BlacklistFilter struct {
	blacklist map[string]time.Time // IP -> 封禁到期时间, 零值表示永久
	mutex     sync.RWMutex
}

// NewBlacklistFilter 创建黑名单过滤器, ips 被永久封禁
func NewBlacklistFilter(ips ...string) *BlacklistFilter {
	bf := &BlacklistFilter{blacklist: make(map[string]time.Time)}
	for _, ip := range ips {
		bf.blacklist[extractIP(ip)] = time.Time{}
	}
	return bf
}

// ShouldAllow 检查是否允许
func (bf *BlacklistFilter) ShouldAllow(addr string) bool {
	ip := extractIP(addr)

	bf.mutex.RLock()
	until, exists := bf.blacklist[ip]
	bf.mutex.RUnlock()

	if !exists {
		return true
	}
	if until.IsZero() || time.Now().Before(until) {
		log.WithField("ip", ip).Debug("rejecting blacklisted address")
		return false
	}

	// 封禁已过期，移除
	bf.mutex.Lock()
	if cur, ok := bf.blacklist[ip]; ok && cur.Equal(until) {
		delete(bf.blacklist, ip)
	}
	bf.mutex.Unlock()
	return true
}

// GetName 获取过滤器名称
func (bf *BlacklistFilter) GetName() string {
	return "blacklist"
}

// AddToBlacklist 添加到黑名单, duration <= 0 表示永久
func (bf *BlacklistFilter) AddToBlacklist(ip string, duration time.Duration) {
	var until time.Time
	if duration > 0 {
		until = time.Now().Add(duration)
	}

	bf.mutex.Lock()
	bf.blacklist[extractIP(ip)] = until
	bf.mutex.Unlock()
}

const (
	limiterIdle    = time.Minute
	limiterMaxKeys = 1024
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitFilter limits accepted connections per remote IP with a token
// bucket. A zero limit disables the filter.
type RateLimitFilter struct {
	limit    rate.Limit
	burst    int
	limiters map[string]*ipLimiter
	mutex    sync.Mutex
}

// NewRateLimitFilter 创建速率限制过滤器, perSecond 为每秒允许的连接数
func NewRateLimitFilter(perSecond float64, burst int) *RateLimitFilter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitFilter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*ipLimiter),
	}
}

// ShouldAllow 检查是否允许
func (rlf *RateLimitFilter) ShouldAllow(addr string) bool {
	if rlf.limit <= 0 {
		return true
	}

	ip := extractIP(addr)
	now := time.Now()

	rlf.mutex.Lock()
	entry, ok := rlf.limiters[ip]
	if !ok {
		if len(rlf.limiters) >= limiterMaxKeys {
			rlf.pruneLocked(now)
		}
		entry = &ipLimiter{limiter: rate.NewLimiter(rlf.limit, rlf.burst)}
		rlf.limiters[ip] = entry
	}
	entry.lastSeen = now
	allowed := entry.limiter.AllowN(now, 1)
	rlf.mutex.Unlock()

	if !allowed {
		log.WithField("ip", ip).Warn("connection rate limit exceeded")
	}
	return allowed
}

func (rlf *RateLimitFilter) pruneLocked(now time.Time) {
	for ip, entry := range rlf.limiters {
		if now.Sub(entry.lastSeen) > limiterIdle {
			delete(rlf.limiters, ip)
		}
	}
}

// GetName 获取过滤器名称
func (rlf *RateLimitFilter) GetName() string {
	return "rate limit"
}

// Chain 按顺序应用多个过滤器, 任一拒绝即拒绝
type Chain struct {
	filters []Filter
}

// NewChain 创建过滤器链
func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// ShouldAllow 检查是否允许
func (c *Chain) ShouldAllow(addr string) bool {
	for _, f := range c.filters {
		if !f.ShouldAllow(addr) {
			log.WithFields(log.Fields{"addr": addr, "filter": f.GetName()}).Info("connection rejected")
			return false
		}
	}
	return true
}

// GetName 获取过滤器名称
func (c *Chain) GetName() string {
	return "chain"
}

// extractIP 从地址中提取IP
func extractIP(addr string) string {
	if strings.Contains(addr, ":") {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return addr
		}
		return host
	}
	return addr
}
