// ABOUTME: Tests for disconnect cause classification and the event union.
// ABOUTME: Verifies rate-limit codes never fall through to retryable causes.

package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamErrorCause(t *testing.T) {
	tests := []struct {
		code string
		want DisconnectCause
	}{
		{"405", CauseRateLimited},
		{"500", CauseUnknown},
		{"503", CauseUnknown},
		{"", CauseUnknown},
		{"garbage", CauseUnknown},
	}

	for _, tt := range tests {
		t.Run("code "+tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, streamErrorCause(tt.code))
		})
	}
}

func TestDisconnectCauseString(t *testing.T) {
	assert.Equal(t, "logged-out", CauseLoggedOut.String())
	assert.Equal(t, "transient-network", CauseTransientNetwork.String())
	assert.Equal(t, "rate-limited", CauseRateLimited.String())
	assert.Equal(t, "unknown", CauseUnknown.String())
	assert.Equal(t, "unknown", DisconnectCause(99).String())
}
