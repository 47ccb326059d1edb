package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	OrdersPlaced    Counter
	OrdersFailed    Counter
	OrdersCancelled Counter
	CancelsFailed   Counter
	ThrottleSkips   Counter
	StaleCancelled  Counter
	Flattens        Counter
	CycleFailures   Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		OrdersPlaced:    n,
		OrdersFailed:    n,
		OrdersCancelled: n,
		CancelsFailed:   n,
		ThrottleSkips:   n,
		StaleCancelled:  n,
		Flattens:        n,
		CycleFailures:   n,
	}
}
