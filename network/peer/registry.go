package peer

import (
	"sort"
	"sync"
)

// Registry 已知节点地址集合, 地址形如 host:port
type Registry struct {
	peers map[string]struct{}
	mutex sync.RWMutex
}

// NewRegistry 创建节点集合, 初始包含 seeds
func NewRegistry(seeds ...string) *Registry {
	r := &Registry{peers: make(map[string]struct{})}
	for _, addr := range seeds {
		if addr != "" {
			r.peers[addr] = struct{}{}
		}
	}
	return r
}

// Add 添加节点, 返回该节点之前是否未知
func (r *Registry) Add(addr string) bool {
	if addr == "" {
		return false
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.peers[addr]; ok {
		return false
	}
	r.peers[addr] = struct{}{}
	return true
}

// Remove 移除节点
func (r *Registry) Remove(addr string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.peers, addr)
}

// Contains 检查节点是否已知
func (r *Registry) Contains(addr string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.peers[addr]
	return ok
}

// Snapshot returns a sorted copy of the known addresses
func (r *Registry) Snapshot() []string {
	r.mutex.RLock()
	addrs := make([]string, 0, len(r.peers))
	for addr := range r.peers {
		addrs = append(addrs, addr)
	}
	r.mutex.RUnlock()

	sort.Strings(addrs)
	return addrs
}

// Len 返回已知节点数量
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.peers)
}
