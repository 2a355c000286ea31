package nbx

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
)

// QuoteCurrency is the fiat leg of every market this client trades.
const QuoteCurrency = "NOK"

// Side is the direction of an order as the exchange spells it.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(s string) (Side, error) {
	switch side := Side(strings.ToUpper(strings.TrimSpace(s))); side {
	case SideBuy, SideSell:
		return side, nil
	default:
		return "", &ValidationError{Field: "side", Value: s}
	}
}

const (
	OrderTypeMarket              = "MARKET"
	TimeInForceImmediateOrCancel = "IMMEDIATE_OR_CANCEL"
	FreezeTypeAmount             = "AMOUNT"
)

type TimeInForce struct {
	Type string `json:"type"`
}

type Freeze struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type Execution struct {
	Type        string      `json:"type"`
	TimeInForce TimeInForce `json:"timeInForce"`
	Freeze      *Freeze     `json:"freeze,omitempty"`
}

// OrderPayload is the body posted to /accounts/{id}/orders.
type OrderPayload struct {
	Market    string     `json:"market,omitempty"`
	Side      Side       `json:"side,omitempty"`
	Quantity  string     `json:"quantity,omitempty"`
	Execution *Execution `json:"execution,omitempty"`
}

// OrderRequest is a market order as entered by the user. For BUY, Amount is
// the fiat amount to spend; for SELL it is the number of units to sell.
type OrderRequest struct {
	Side   Side
	Ticker string
	Amount decimal.Decimal
}

// MarketSymbol quotes ticker against QuoteCurrency, e.g. BTC-NOK.
func MarketSymbol(ticker string) string {
	return ticker + "-" + QuoteCurrency
}

// NewOrderPayload builds an immediate-or-cancel market order. A BUY fixes
// quantity at 1 and caps the spend with an AMOUNT freeze; a SELL sets quantity
// to amount. Any other side yields an empty payload.
func NewOrderPayload(side Side, ticker string, amount decimal.Decimal) OrderPayload {
	execution := &Execution{
		Type:        OrderTypeMarket,
		TimeInForce: TimeInForce{Type: TimeInForceImmediateOrCancel},
	}

	switch side {
	case SideBuy:
		execution.Freeze = &Freeze{Type: FreezeTypeAmount, Value: amount.String()}
		return OrderPayload{
			Market:    MarketSymbol(ticker),
			Side:      SideBuy,
			Quantity:  "1",
			Execution: execution,
		}
	case SideSell:
		return OrderPayload{
			Market:    MarketSymbol(ticker),
			Side:      SideSell,
			Quantity:  amount.String(),
			Execution: execution,
		}
	default:
		return OrderPayload{}
	}
}

// OutcomeStatus classifies an order submission by HTTP status.
type OutcomeStatus int

const (
	OutcomeAccepted OutcomeStatus = iota + 1
	OutcomeRejected
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// OrderOutcome is the exchange's answer to an order submission. Transport
// failures are reported as errors, never as an outcome.
type OrderOutcome struct {
	Status     OutcomeStatus
	StatusCode int
	Body       string
}

// Accepted reports whether the exchange answered 2xx.
func (o *OrderOutcome) Accepted() bool {
	return o.Status == OutcomeAccepted
}

func outcomeFromStatus(statusCode int, body []byte) *OrderOutcome {
	status := OutcomeRejected
	if statusCode >= 200 && statusCode < 300 {
		status = OutcomeAccepted
	}
	return &OrderOutcome{Status: status, StatusCode: statusCode, Body: string(body)}
}

// CreateOrder validates and submits a market order. Acceptance is decided by
// the HTTP status class only.
func (c *Client) CreateOrder(ctx context.Context, token BearerToken, order OrderRequest) (*OrderOutcome, error) {
	side, err := ParseSide(string(order.Side))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(order.Ticker) == "" {
		return nil, &ValidationError{Field: "ticker", Value: order.Ticker}
	}
	if !order.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Value: order.Amount.String()}
	}

	body, err := json.Marshal(NewOrderPayload(side, order.Ticker, order.Amount))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order to JSON: %w", err)
	}

	resp, err := c.doRequest(ctx, "CreateOrder", fasthttp.MethodPost, accountPath(c.cred.AccountID, "orders"), func(h *fasthttp.RequestHeader) {
		h.Set(fasthttp.HeaderAuthorization, token.header())
	}, body)
	if err != nil {
		return nil, err
	}

	outcome := outcomeFromStatus(resp.status, resp.body)
	if !outcome.Accepted() {
		c.log.Error("CreateOrder", "market", MarketSymbol(order.Ticker), "side", side, "status", resp.status, "body", outcome.Body)
	}
	return outcome, nil
}

// OrderSummary is one entry of the account's order list.
type OrderSummary struct {
	ID     string
	Market string
	Side   string
	Status string
}

// ListOrders returns the account's orders, most recent first.
func (c *Client) ListOrders(ctx context.Context, token BearerToken) ([]OrderSummary, error) {
	entries, err := c.fetchOrders(ctx, "ListOrders", token)
	if err != nil {
		return nil, err
	}

	orders := make([]OrderSummary, 0, len(entries))
	for i, o := range entries {
		id, err := entryID(i, o)
		if err != nil {
			return nil, err
		}
		orders = append(orders, OrderSummary{
			ID:     id,
			Market: o.Get("market").Str,
			Side:   o.Get("side").Str,
			Status: o.Get("status").Str,
		})
	}
	return orders, nil
}

func (c *Client) fetchOrders(ctx context.Context, op string, token BearerToken) ([]gjson.Result, error) {
	v, err := c.authorizedGet(ctx, op, token, accountPath(c.cred.AccountID, "orders"))
	if err != nil {
		return nil, err
	}
	if !v.IsArray() {
		return nil, &ProtocolError{Field: "orders", Reason: "is not an array"}
	}
	return v.Array(), nil
}

func entryID(i int, o gjson.Result) (string, error) {
	id := o.Get("id")
	if id.Type != gjson.String || id.Str == "" {
		return "", &ProtocolError{Field: fmt.Sprintf("%d.id", i), Reason: "missing"}
	}
	return id.Str, nil
}

// OrderFill describes the first fill of an order. Cost is always derived
// as Price * Quantity.
type OrderFill struct {
	OrderID  string
	Created  string
	Fee      decimal.Decimal
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Cost     decimal.Decimal
}

func (f OrderFill) String() string {
	return fmt.Sprintf("OrderFill{OrderID:%s Created:%s Fee:%s Price:%s Quantity:%s Cost:%s}",
		f.OrderID, f.Created, f.Fee, f.Price, f.Quantity, f.Cost)
}

// LastOrderDetails resolves the most recent order and returns its fill.
// Only the first list entry is read; the rest of the list is not validated.
func (c *Client) LastOrderDetails(ctx context.Context, token BearerToken) (*OrderFill, error) {
	entries, err := c.fetchOrders(ctx, "LastOrderDetails", token)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &NotFoundError{What: "last order"}
	}
	id, err := entryID(0, entries[0])
	if err != nil {
		return nil, err
	}
	return c.OrderDetails(ctx, token, id)
}

// OrderDetails fetches orderID and reads fills[0].
func (c *Client) OrderDetails(ctx context.Context, token BearerToken, orderID string) (*OrderFill, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, &ValidationError{Field: "order id", Value: orderID}
	}

	v, err := c.authorizedGet(ctx, "OrderDetails", token, accountPath(c.cred.AccountID, "orders", orderID))
	if err != nil {
		return nil, err
	}
	return parseFill(orderID, v)
}

func parseFill(orderID string, v gjson.Result) (*OrderFill, error) {
	fills := v.Get("fills")
	if !fills.IsArray() {
		return nil, &ProtocolError{Field: "fills", Reason: "is not an array"}
	}
	entries := fills.Array()
	if len(entries) == 0 {
		return nil, &NotFoundError{What: "fill for order " + orderID}
	}
	first := entries[0]

	created := first.Get("createdAt")
	if created.Type != gjson.String {
		return nil, &ProtocolError{Field: "fills.0.createdAt", Reason: "missing"}
	}

	fill := &OrderFill{OrderID: orderID, Created: created.Str}
	for _, f := range []struct {
		path string
		dst  *decimal.Decimal
	}{
		{"fee", &fill.Fee},
		{"price", &fill.Price},
		{"quantity", &fill.Quantity},
	} {
		d, err := decimalField(first, f.path)
		if err != nil {
			return nil, fmt.Errorf("fills.0: %w", err)
		}
		*f.dst = d
	}
	fill.Cost = fill.Price.Mul(fill.Quantity)

	return fill, nil
}
