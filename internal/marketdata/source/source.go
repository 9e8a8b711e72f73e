package source

import (
	"context"

	"vpinscope.com/internal/marketdata/model"
)

// Source is a pluggable trade feed. Run must block: it keeps producing
// trades until ctx is done or the connection fails.
type Source interface {
	Name() string
	Run(ctx context.Context, out chan<- model.Trade) error
}
