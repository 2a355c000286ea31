package nbx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Pool for strings.Builder instances to reduce allocations
var builderPool = sync.Pool{
	New: func() any {
		return &strings.Builder{}
	},
}

// SignedRequest is the material covered by one HMAC signature. Build a new
// one for every call; a stale timestamp is rejected by the exchange.
type SignedRequest struct {
	Timestamp int64 // ms since epoch
	Method    string
	Path      string
	Body      string
}

// NewSignedRequest stamps the request with the current time in milliseconds.
func NewSignedRequest(method, path, body string) SignedRequest {
	return SignedRequest{
		Timestamp: time.Now().UnixMilli(),
		Method:    method,
		Path:      path,
		Body:      body,
	}
}

// Sign signs r with the base64 secret.
func (r SignedRequest) Sign(secret string) (string, error) {
	return Sign(secret, r.Timestamp, r.Method, r.Path, r.Body)
}

// Sign returns base64(HMAC-SHA256(base64decode(secret), timestamp+METHOD+path+body)).
func Sign(secret string, timestamp int64, method, path, body string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", &DecodeError{Input: "secret", Err: err}
	}

	builder := builderPool.Get().(*strings.Builder)
	builder.Reset()
	defer builderPool.Put(builder)

	builder.WriteString(strconv.FormatInt(timestamp, 10))
	builder.WriteString(strings.ToUpper(method))
	builder.WriteString(path)
	builder.WriteString(body)

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(builder.String()))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
