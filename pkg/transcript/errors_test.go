package transcript

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_RetryableByKind(t *testing.T) {
	retryAfter := int64(500)
	cases := []struct {
		name string
		err  *Error
		want bool
	}{
		{"authentication", NewAuthentication("connect", "bad key"), false},
		{"network", NewNetwork("connect", "reset", true), true},
		{"rate_limit", NewRateLimit("send", "slow down", &retryAfter), true},
		{"timeout", NewTimeout("connect", "handshake", 5000), true},
		{"format_mismatch", NewFormatMismatch("send", "pcm16", "float32"), false},
		{"provider", NewProvider("message", "deepgram", "bad_request", 500, nil), false},
		{"aborted", NewAborted("connect", "cancelled"), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.err.Retryable())
		})
	}
}

func TestError_UnwrapReturnsWrappedErr(t *testing.T) {
	inner := errors.New("dial failed")
	err := Wrap(KindNetwork, "connect", inner)
	assert.ErrorIs(t, err, inner)
}

func TestError_MessageIncludesOpAndKind(t *testing.T) {
	err := NewAuthentication("connect", "bad key")
	assert.Contains(t, err.Error(), "connect")
	assert.Contains(t, err.Error(), "authentication")
	assert.Contains(t, err.Error(), "bad key")
}

func TestError_RateLimitCarriesRetryAfter(t *testing.T) {
	retryAfter := int64(1200)
	err := NewRateLimit("send", "slow down", &retryAfter)
	assert.Equal(t, &retryAfter, err.RetryAfterMs)
}
