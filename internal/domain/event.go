package domain

import "time"

// ChainEvent is a simulated on-chain event produced by the indexer, one
// per block in an indexed range.
type ChainEvent struct {
	ID          int64
	BlockNumber uint64
	TxHash      string
	Kind        string
	Payload     map[string]any
	CreatedAt   time.Time
}
