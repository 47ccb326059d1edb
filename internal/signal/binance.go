package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"standx-grid-bot/internal/indicator"
)

const defaultBinanceBaseURL = "https://api.binance.com"

// BinanceADX computes the trend signal from Binance klines. The venue symbol
// (e.g. "BTC-USD") is collapsed to Binance's concatenated USDT pair the way
// the indicator feed expects it.
type BinanceADX struct {
	baseURL  string
	interval string
	period   int
	http     *http.Client
}

func NewBinanceADX(baseURL, interval string, period int, timeout time.Duration) *BinanceADX {
	if baseURL == "" {
		baseURL = defaultBinanceBaseURL
	}
	if interval == "" {
		interval = "5m"
	}
	if period <= 0 {
		period = 14
	}
	return &BinanceADX{
		baseURL:  strings.TrimRight(baseURL, "/"),
		interval: interval,
		period:   period,
		http:     &http.Client{Timeout: timeout},
	}
}

func (b *BinanceADX) Value(ctx context.Context, symbol string) (float64, error) {
	highs, lows, closes, err := b.klines(ctx, binanceSymbol(symbol))
	if err != nil {
		return 0, err
	}
	v, ok := indicator.LatestADX(highs, lows, closes, b.period)
	if !ok {
		return 0, errors.New("not enough candles for adx")
	}
	return v, nil
}

func (b *BinanceADX) klines(ctx context.Context, symbol string) (highs, lows, closes []float64, err error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", b.interval)
	q.Set("limit", strconv.Itoa(b.period*5))
	reqURL := b.baseURL + "/api/v3/klines?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, nil, nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	var rows [][]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, nil, nil, err
	}
	for _, row := range rows {
		// Kline rows are [openTime, open, high, low, close, ...] with the
		// price fields as strings.
		if len(row) < 5 {
			continue
		}
		high, ok1 := parseKlineField(row[2])
		low, ok2 := parseKlineField(row[3])
		closePx, ok3 := parseKlineField(row[4])
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		highs = append(highs, high)
		lows = append(lows, low)
		closes = append(closes, closePx)
	}
	return highs, lows, closes, nil
}

func parseKlineField(v any) (float64, bool) {
	switch val := v.(type) {
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	case float64:
		return val, true
	}
	return 0, false
}

// binanceSymbol maps "BTC-USD" / "BTC-USDT" to "BTCUSDT".
func binanceSymbol(symbol string) string {
	base, quote, ok := strings.Cut(strings.ToUpper(symbol), "-")
	if !ok {
		return base
	}
	if quote == "USD" {
		quote = "USDT"
	}
	return base + quote
}
