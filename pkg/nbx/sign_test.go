package nbx

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign_KnownVector(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("k"))
	require.Equal(t, "aw==", secret)

	sig, err := Sign(secret, 1700000000000, "POST", "/x", "{}")
	require.NoError(t, err)
	assert.Equal(t, "lW7roy3DZKc41/M5qWe03R1G+wTBmlEZ90i7SO3U+fA=", sig)
}

func TestSign_TokenRequestVector(t *testing.T) {
	secret := "ZmFrZSBrZXkgc3R1ZmYhIDEyMzQ1Ng=="
	sig, err := Sign(secret, 1700000000000, "POST", "/accounts/acc-1/api_keys/key-1/tokens", `{"expiresIn":"3600"}`)
	require.NoError(t, err)
	assert.Equal(t, "/noVupK7luCnlQF4wFdw2aFOcYUCPkdIAc4SuKYtAmA=", sig)
}

func TestSign_Deterministic(t *testing.T) {
	a, err := Sign("aw==", 1700000000000, "POST", "/x", "{}")
	require.NoError(t, err)
	b, err := Sign("aw==", 1700000000000, "POST", "/x", "{}")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSign_EveryFieldMatters(t *testing.T) {
	base, err := Sign("aw==", 1700000000000, "POST", "/x", "{}")
	require.NoError(t, err)

	tests := []struct {
		name      string
		secret    string
		timestamp int64
		method    string
		path      string
		body      string
	}{
		{"secret", base64.StdEncoding.EncodeToString([]byte("j")), 1700000000000, "POST", "/x", "{}"},
		{"timestamp", "aw==", 1700000000001, "POST", "/x", "{}"},
		{"method", "aw==", 1700000000000, "GET", "/x", "{}"},
		{"path", "aw==", 1700000000000, "POST", "/y", "{}"},
		{"body", "aw==", 1700000000000, "POST", "/x", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := Sign(tt.secret, tt.timestamp, tt.method, tt.path, tt.body)
			require.NoError(t, err)
			assert.NotEqual(t, base, sig)
		})
	}
}

func TestSign_MethodIsUppercased(t *testing.T) {
	upper, err := Sign("aw==", 1700000000000, "POST", "/x", "{}")
	require.NoError(t, err)
	lower, err := Sign("aw==", 1700000000000, "post", "/x", "{}")
	require.NoError(t, err)
	assert.Equal(t, upper, lower)
}

func TestSign_InvalidSecret(t *testing.T) {
	_, err := Sign("not base64!", 1700000000000, "POST", "/x", "{}")
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "secret", decodeErr.Input)
}

func TestSignedRequest_StampsCurrentTime(t *testing.T) {
	r := NewSignedRequest("POST", "/x", "{}")
	assert.Positive(t, r.Timestamp)

	sig, err := r.Sign("aw==")
	require.NoError(t, err)
	want, err := Sign("aw==", r.Timestamp, "POST", "/x", "{}")
	require.NoError(t, err)
	assert.Equal(t, want, sig)
}
