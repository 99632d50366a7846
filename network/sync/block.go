// Package sync holds the node's block download queue and pending
// transaction pool. Each type owns its lock and is safe for concurrent use.
package sync

import (
	"sync"
)

// Tracker 正在下载的区块哈希队列, 按请求顺序排列
type Tracker struct {
	hashes [][]byte
	mutex  sync.Mutex
}

// NewTracker 创建区块下载队列
func NewTracker() *Tracker {
	return &Tracker{}
}

// Replace 用 hashes 整体替换队列
func (t *Tracker) Replace(hashes [][]byte) {
	copied := make([][]byte, len(hashes))
	copy(copied, hashes)

	t.mutex.Lock()
	t.hashes = copied
	t.mutex.Unlock()
}

// PopFront removes and returns the first hash. The queue is left holding
// the remainder.
func (t *Tracker) PopFront() ([]byte, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if len(t.hashes) == 0 {
		return nil, false
	}

	first := t.hashes[0]
	t.hashes = t.hashes[1:]
	return first, true
}

// Snapshot 返回队列的副本
func (t *Tracker) Snapshot() [][]byte {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	copied := make([][]byte, len(t.hashes))
	copy(copied, t.hashes)
	return copied
}

// Len 返回队列长度
func (t *Tracker) Len() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.hashes)
}
