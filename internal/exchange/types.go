package exchange

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type OrderStatus string

const (
	StatusPending         OrderStatus = "pending"
	StatusOpen            OrderStatus = "open"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusFilled          OrderStatus = "filled"
	StatusCancelled       OrderStatus = "cancelled"
)

// IsWorking reports whether an order in this status is still resting on the
// book and therefore participates in reconciliation.
func (s OrderStatus) IsWorking() bool {
	switch s {
	case StatusPending, StatusOpen, StatusPartiallyFilled:
		return true
	}
	return false
}

type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// PriceSnapshot is the latest venue price view. It is replaced wholesale on
// every feed update; no history is kept.
type PriceSnapshot struct {
	Last      float64
	Mark      float64
	Mid       float64
	Bid       float64
	Ask       float64
	Timestamp int64
}

// Reference returns the price the grid is anchored on: last, falling back to
// mid, falling back to mark.
func (p PriceSnapshot) Reference() float64 {
	if p.Last > 0 {
		return p.Last
	}
	if p.Mid > 0 {
		return p.Mid
	}
	return p.Mark
}

// OrderRecord is the normalized view of one venue order. Price is in integer
// tick units.
type OrderRecord struct {
	ID        string
	Side      Side
	Price     int64
	Quantity  float64
	Status    OrderStatus
	CreatedAt int64
}

// PositionRecord holds the position magnitude and direction for one symbol.
// Size is always non-negative; Side carries the sign.
type PositionRecord struct {
	Symbol string
	Size   float64
	Side   PositionSide
}

type OrderRequest struct {
	Symbol      string
	Side        Side
	Type        OrderType
	Quantity    float64
	Price       int64
	TimeInForce string
	ReduceOnly  bool
}
