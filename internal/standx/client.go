package standx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"standx-grid-bot/internal/exchange"

	"go.uber.org/zap"
)

// Client is the StandX REST client. All trading endpoints require a bearer
// token, obtained either from config or from the wallet signature login.
type Client struct {
	baseURL string
	http    *http.Client
	signer  *Signer
	log     *zap.Logger

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL string, timeout time.Duration, signer *Signer, apiToken string, log *zap.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base url is required")
	}
	if apiToken == "" && signer == nil {
		return nil, errors.New("either api token or wallet signer is required")
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		signer:  signer,
		log:     log,
		token:   apiToken,
	}, nil
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login performs the wallet signature flow: request a challenge message for
// the wallet address, personal-sign it, and exchange the signature for a
// session token. A configured API token makes this a no-op.
func (c *Client) Login(ctx context.Context) error {
	if c.Token() != "" {
		return nil
	}
	if c.signer == nil {
		return errors.New("no api token and no wallet signer configured")
	}
	address := c.signer.Address().Hex()
	var challenge struct {
		Message string `json:"message"`
	}
	if err := c.post(ctx, "/api/auth/request_message", map[string]string{"address": address}, &challenge); err != nil {
		return fmt.Errorf("request login message: %w", err)
	}
	if challenge.Message == "" {
		return errors.New("empty login challenge message")
	}
	signature, err := c.signer.SignMessage(challenge.Message)
	if err != nil {
		return fmt.Errorf("sign login message: %w", err)
	}
	var session struct {
		Token string `json:"token"`
	}
	payload := map[string]string{
		"address":   address,
		"message":   challenge.Message,
		"signature": signature,
	}
	if err := c.post(ctx, "/api/auth/login", payload, &session); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if session.Token == "" {
		return errors.New("login returned empty token")
	}
	c.mu.Lock()
	c.token = session.Token
	c.mu.Unlock()
	if c.log != nil {
		c.log.Info("standx login complete", zap.String("address", address))
	}
	return nil
}

func (c *Client) Ticker(ctx context.Context, symbol string) (exchange.PriceSnapshot, error) {
	var msg priceMessage
	if err := c.get(ctx, "/api/query_symbol_price", url.Values{"symbol": {symbol}}, &msg); err != nil {
		return exchange.PriceSnapshot{}, err
	}
	return normalizePrice(msg, time.Now().UnixMilli()), nil
}

func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]exchange.OrderRecord, error) {
	var msgs []orderMessage
	if err := c.get(ctx, "/api/query_open_orders", url.Values{"symbol": {symbol}}, &msgs); err != nil {
		return nil, err
	}
	records := make([]exchange.OrderRecord, 0, len(msgs))
	for _, msg := range msgs {
		if record, ok := normalizeOrder(msg); ok {
			records = append(records, record)
		}
	}
	return records, nil
}

func (c *Client) Positions(ctx context.Context, symbol string) ([]exchange.PositionRecord, error) {
	var msgs []positionMessage
	if err := c.get(ctx, "/api/query_positions", url.Values{"symbol": {symbol}}, &msgs); err != nil {
		return nil, err
	}
	records := make([]exchange.PositionRecord, 0, len(msgs))
	for _, msg := range msgs {
		if record, ok := normalizePosition(msg, symbol); ok {
			records = append(records, record)
		}
	}
	return records, nil
}

func (c *Client) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderRecord, error) {
	tif := req.TimeInForce
	if tif == "" {
		tif = "gtc"
	}
	payload := map[string]any{
		"symbol":        req.Symbol,
		"side":          string(req.Side),
		"order_type":    string(req.Type),
		"qty":           strconv.FormatFloat(req.Quantity, 'f', -1, 64),
		"price":         strconv.FormatInt(req.Price, 10),
		"time_in_force": tif,
		"reduce_only":   req.ReduceOnly,
	}
	var msg orderMessage
	if err := c.post(ctx, "/api/new_order", payload, &msg); err != nil {
		return exchange.OrderRecord{}, err
	}
	record, ok := normalizeOrder(msg)
	if !ok {
		return exchange.OrderRecord{}, errors.New("order response missing id")
	}
	return record, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	return c.post(ctx, "/api/cancel_order", map[string]string{"order_id": orderID}, nil)
}

func (c *Client) CancelOrdersByIDs(ctx context.Context, symbol string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	payload := map[string]any{
		"symbol":    symbol,
		"order_ids": ids,
	}
	return c.post(ctx, "/api/cancel_orders", payload, nil)
}

func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	return c.post(ctx, "/api/cancel_all_orders", map[string]string{"symbol": symbol}, nil)
}

func (c *Client) ClosePosition(ctx context.Context, symbol string, orderType exchange.OrderType) error {
	payload := map[string]string{
		"symbol":     symbol,
		"order_type": string(orderType),
	}
	return c.post(ctx, "/api/close_position", payload, nil)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
