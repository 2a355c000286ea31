package nbx

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Balance returns the available amount of assetID held by the account.
func (c *Client) Balance(ctx context.Context, token BearerToken, assetID string) (decimal.Decimal, error) {
	v, err := c.authorizedGet(ctx, "Balance", token, accountPath(c.cred.AccountID, "assets", assetID))
	if err != nil {
		return decimal.Zero, err
	}
	return decimalField(v, "balance.available")
}

// decimalField reads a numeric field that the exchange may encode as a JSON
// string or a JSON number.
func decimalField(v gjson.Result, path string) (decimal.Decimal, error) {
	r := v.Get(path)
	if !r.Exists() || r.Type == gjson.Null {
		return decimal.Zero, &ProtocolError{Field: path, Reason: "missing"}
	}

	var raw string
	switch r.Type {
	case gjson.String:
		raw = r.Str
	case gjson.Number:
		raw = r.Raw
	default:
		return decimal.Zero, &ParseError{Field: path, Value: r.Raw, Err: errNotNumeric}
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ParseError{Field: path, Value: raw, Err: err}
	}
	return d, nil
}
