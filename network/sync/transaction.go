package sync

import (
	"sort"
	"sync"

	"mini-coin-node/blockchain"
)

// Mempool 交易内存池, 以十六进制交易 ID 为键
type Mempool struct {
	txs         map[string]*blockchain.Transaction
	maxPoolSize int
	mutex       sync.RWMutex
}

// NewMempool 创建交易内存池, maxPoolSize <= 0 表示不限制大小
func NewMempool(maxPoolSize int) *Mempool {
	return &Mempool{
		txs:         make(map[string]*blockchain.Transaction),
		maxPoolSize: maxPoolSize,
	}
}

// Put stores tx under its id. It reports false when tx has no id or the pool
// is full; replacing a transaction already present always succeeds.
func (m *Mempool) Put(tx *blockchain.Transaction) bool {
	if tx == nil || len(tx.ID) == 0 {
		return false
	}
	id := tx.IDString()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.txs[id]; !ok && m.maxPoolSize > 0 && len(m.txs) >= m.maxPoolSize {
		return false
	}
	m.txs[id] = tx
	return true
}

// Get 根据十六进制交易 ID 查找交易
func (m *Mempool) Get(id string) (*blockchain.Transaction, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	tx, ok := m.txs[id]
	return tx, ok
}

// Snapshot returns the pooled transactions ordered by id
func (m *Mempool) Snapshot() []*blockchain.Transaction {
	m.mutex.RLock()
	txs := make([]*blockchain.Transaction, 0, len(m.txs))
	for _, tx := range m.txs {
		txs = append(txs, tx)
	}
	m.mutex.RUnlock()

	sort.Slice(txs, func(i, j int) bool { return txs[i].IDString() < txs[j].IDString() })
	return txs
}

// IDs 返回所有交易 ID, 按字典序排列
func (m *Mempool) IDs() []string {
	m.mutex.RLock()
	ids := make([]string, 0, len(m.txs))
	for id := range m.txs {
		ids = append(ids, id)
	}
	m.mutex.RUnlock()

	sort.Strings(ids)
	return ids
}

// Remove 移除指定的交易
func (m *Mempool) Remove(ids ...string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, id := range ids {
		delete(m.txs, id)
	}
}

// Len 返回内存池中的交易数量
func (m *Mempool) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.txs)
}
