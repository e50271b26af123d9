package replenish

import "context"

// Repository aggregates raw canister demand for a plan. Items come back with
// Required, Available and EarliestOrderNo populated and already ordered; the
// service derives the replenish amounts and applies the mini-batch cut.
type Repository interface {
	ListDemand(ctx context.Context, q Query) ([]Item, error)
}
