package nbx

import (
	"fmt"
	"log/slog"
)

const redacted = "[redacted]"

// Credential identifies an NBX account and carries the API key material used
// to sign token requests. It is treated as read-only once loaded.
type Credential struct {
	AccountID     string
	KeyID         string
	Passphrase    string
	Secret        string // base64
	TokenLifetime string // sent verbatim as expiresIn
}

// String hides the secret and passphrase so a credential can be printed safely.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{AccountID:%s KeyID:%s Passphrase:%s Secret:%s TokenLifetime:%s}",
		c.AccountID, c.KeyID, redacted, redacted, c.TokenLifetime)
}

// LogValue logs the account and key ids only.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("account", c.AccountID),
		slog.String("key", c.KeyID),
		slog.String("tokenLifetime", c.TokenLifetime),
	)
}

// BearerToken is the short-lived session token returned by IssueToken.
type BearerToken string

func (t BearerToken) header() string {
	return "Bearer " + string(t)
}

func (t BearerToken) String() string {
	if t == "" {
		return ""
	}
	return redacted
}

func (t BearerToken) LogValue() slog.Value {
	return slog.StringValue(t.String())
}
