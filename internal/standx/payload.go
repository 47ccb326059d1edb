package standx

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"standx-grid-bot/internal/exchange"
)

// decimal accepts both JSON numbers and decimal strings; StandX uses
// strings for prices and quantities on some channels and numbers on others.
type decimal float64

func (d *decimal) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*d = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return err
		}
		*d = decimal(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*d = decimal(v)
	return nil
}

// wsEnvelope is the outer frame of every stream message.
type wsEnvelope struct {
	Channel string          `json:"channel"`
	Symbol  string          `json:"symbol"`
	Data    json.RawMessage `json:"data"`
}

type priceMessage struct {
	LastPrice decimal   `json:"last_price"`
	MarkPrice decimal   `json:"mark_price"`
	MidPrice  decimal   `json:"mid_price"`
	Spread    []decimal `json:"spread"`
	Timestamp int64     `json:"timestamp"`
}

type orderMessage struct {
	ID        string  `json:"id"`
	ClOrdID   string  `json:"cl_ord_id"`
	Side      string  `json:"side"`
	Price     decimal `json:"price"`
	Qty       decimal `json:"qty"`
	Status    string  `json:"status"`
	CreatedAt int64   `json:"created_at"`
}

type positionMessage struct {
	Symbol string   `json:"symbol"`
	Qty    *decimal `json:"qty"`
}

// normalizePrice converts a stream price frame into a snapshot. The spread
// array carries best bid at index 0 and best ask at index 1.
func normalizePrice(msg priceMessage, nowMS int64) exchange.PriceSnapshot {
	snap := exchange.PriceSnapshot{
		Last:      float64(msg.LastPrice),
		Mark:      float64(msg.MarkPrice),
		Mid:       float64(msg.MidPrice),
		Timestamp: msg.Timestamp,
	}
	if len(msg.Spread) > 0 {
		snap.Bid = float64(msg.Spread[0])
	}
	if len(msg.Spread) > 1 {
		snap.Ask = float64(msg.Spread[1])
	}
	if snap.Timestamp == 0 {
		snap.Timestamp = nowMS
	}
	return snap
}

// normalizeOrder converts an order frame into a record. An order without an
// id cannot be tracked and is reported as not ok.
func normalizeOrder(msg orderMessage) (exchange.OrderRecord, bool) {
	id := msg.ID
	if id == "" {
		id = msg.ClOrdID
	}
	if id == "" {
		return exchange.OrderRecord{}, false
	}
	return exchange.OrderRecord{
		ID:        id,
		Side:      exchange.Side(strings.ToLower(msg.Side)),
		Price:     int64(math.Round(float64(msg.Price))),
		Quantity:  float64(msg.Qty),
		Status:    exchange.OrderStatus(strings.ToLower(msg.Status)),
		CreatedAt: msg.CreatedAt,
	}, true
}

// normalizePosition converts a position frame. Signed qty carries the
// direction; a frame without qty is dropped.
func normalizePosition(msg positionMessage, fallbackSymbol string) (exchange.PositionRecord, bool) {
	if msg.Qty == nil {
		return exchange.PositionRecord{}, false
	}
	symbol := msg.Symbol
	if symbol == "" {
		symbol = fallbackSymbol
	}
	qty := float64(*msg.Qty)
	side := exchange.PositionLong
	if qty < 0 {
		side = exchange.PositionShort
	}
	return exchange.PositionRecord{
		Symbol: symbol,
		Size:   math.Abs(qty),
		Side:   side,
	}, true
}
