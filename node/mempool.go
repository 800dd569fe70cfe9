package node

import (
	"github.com/Nie-Tianyi/rusty-coin/consensus"
	"github.com/Nie-Tianyi/rusty-coin/internal/metrics"
)

// Mempool is the ordered collection of unconfirmed regular
// transactions owned by a chain. Eviction policy belongs to the host;
// the pool only guarantees insertion order and id-uniqueness.
type Mempool struct {
	txs  []consensus.Transaction
	seen map[consensus.HashValue]struct{}
}

func NewMempool() *Mempool {
	return &Mempool{seen: make(map[consensus.HashValue]struct{})}
}

// Add appends a regular transaction, skipping coinbases and ids already
// pooled. Reports whether the transaction was added.
func (m *Mempool) Add(tx consensus.Transaction) bool {
	if tx.IsCoinbase() {
		return false
	}
	if _, ok := m.seen[tx.ID]; ok {
		return false
	}
	m.seen[tx.ID] = struct{}{}
	m.txs = append(m.txs, tx)
	metrics.MempoolSize.Set(float64(len(m.txs)))
	return true
}

// Pending returns the pooled transactions in insertion order.
func (m *Mempool) Pending() []consensus.Transaction {
	out := make([]consensus.Transaction, len(m.txs))
	copy(out, m.txs)
	return out
}

// Remove drops the transactions with the given ids, keeping order for
// the rest.
func (m *Mempool) Remove(ids ...consensus.HashValue) {
	drop := make(map[consensus.HashValue]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := m.txs[:0]
	for _, tx := range m.txs {
		if _, ok := drop[tx.ID]; ok {
			delete(m.seen, tx.ID)
			continue
		}
		kept = append(kept, tx)
	}
	m.txs = kept
	metrics.MempoolSize.Set(float64(len(m.txs)))
}

// Contains reports whether a transaction with the given id is pooled.
func (m *Mempool) Contains(id consensus.HashValue) bool {
	_, ok := m.seen[id]
	return ok
}

func (m *Mempool) Size() int {
	return len(m.txs)
}
