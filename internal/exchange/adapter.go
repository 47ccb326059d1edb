package exchange

import "context"

// Adapter is the venue capability contract consumed by the engine. Venue
// implementations normalize heterogeneous payloads into the typed records in
// this package; nothing past this boundary inspects raw venue messages.
type Adapter interface {
	Connect(ctx context.Context) error

	// Streaming subscriptions. Callbacks run on the adapter's feed goroutine
	// and must not block; a malformed message is dropped inside the adapter
	// and never reaches the callback.
	SubscribePrices(ctx context.Context, symbol string, fn func(PriceSnapshot)) error
	SubscribeOrders(ctx context.Context, symbol string, fn func(OrderRecord)) error
	SubscribePositions(ctx context.Context, symbol string, fn func(PositionRecord)) error

	// Snapshot queries, used when the streaming cache has nothing yet.
	Ticker(ctx context.Context, symbol string) (PriceSnapshot, error)
	OpenOrders(ctx context.Context, symbol string) ([]OrderRecord, error)
	Positions(ctx context.Context, symbol string) ([]PositionRecord, error)

	PlaceOrder(ctx context.Context, req OrderRequest) (OrderRecord, error)
	CancelOrder(ctx context.Context, orderID string) error
	CancelAllOrders(ctx context.Context, symbol string) error
	ClosePosition(ctx context.Context, symbol string, orderType OrderType) error
}

// BulkCanceller is an optional adapter capability. Callers type-assert for it
// and fall back to sequential CancelOrder calls when absent.
type BulkCanceller interface {
	CancelOrdersByIDs(ctx context.Context, symbol string, ids []string) error
}
