package store

import (
	"context"

	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
)

// ExchangeFilter specifies criteria for listing history entries.
type ExchangeFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Store defines the persistence interface for the chat history log.
// History writes are best-effort from the pipeline's perspective; a failed
// save is logged and never fails the request that produced the answer.
type Store interface {
	SaveExchange(ctx context.Context, ex model.Exchange) error
	ListExchanges(ctx context.Context, filter ExchangeFilter) ([]model.Exchange, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
