package nbx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/valyala/fasthttp"
)

const (
	hmacScheme      = "NBX-HMAC-SHA256"
	timestampHeader = "x-nbx-timestamp"
)

type tokenRequest struct {
	ExpiresIn string `json:"expiresIn"`
}

// IssueToken exchanges a signed request for a bearer token valid for the
// credential's configured lifetime.
func (c *Client) IssueToken(ctx context.Context) (BearerToken, error) {
	path := accountPath(c.cred.AccountID, "api_keys", c.cred.KeyID, "tokens")

	body, err := json.Marshal(tokenRequest{ExpiresIn: c.cred.TokenLifetime})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	signed := NewSignedRequest(fasthttp.MethodPost, path, string(body))
	signature, err := signed.Sign(c.cred.Secret)
	if err != nil {
		return "", err
	}

	resp, err := c.doRequest(ctx, "IssueToken", fasthttp.MethodPost, path, func(h *fasthttp.RequestHeader) {
		h.Set(fasthttp.HeaderAuthorization, hmacScheme+" "+c.cred.Passphrase+":"+signature)
		h.Set(timestampHeader, strconv.FormatInt(signed.Timestamp, 10))
	}, body)
	if err != nil {
		return "", err
	}
	if !resp.ok() {
		c.log.Error("IssueToken", "status", resp.status, "body", string(resp.body))
		return "", &StatusError{StatusCode: resp.status, Body: string(resp.body)}
	}

	v, err := parseJSON(resp.body)
	if err != nil {
		return "", err
	}

	token := v.Get("token")
	if !token.Exists() {
		return "", &ProtocolError{Field: "token", Reason: "missing"}
	}
	if token.Str == "" {
		return "", &ProtocolError{Field: "token", Reason: "is not a non-empty string"}
	}

	c.log.Info("IssueToken", "account", c.cred.AccountID, "expiresIn", c.cred.TokenLifetime)
	return BearerToken(token.Str), nil
}
