package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketTokenCodec_SignVerifyRoundTrip(t *testing.T) {
	codec := NewTicketTokenCodec([]byte("qr-secret"))
	payload := TicketPayload{TicketID: "tid-1", EventID: "eid-1", IssuedAt: 1700000000000}

	token, err := codec.Sign(payload)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	result := codec.Verify(token)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Err)
	assert.Equal(t, payload.TicketID, result.TicketID)
	assert.Equal(t, payload.EventID, result.EventID)
	assert.Equal(t, payload.IssuedAt, result.IssuedAt)
}

// Token forgery resistance (§8 property 6): any mutation of a valid token fails
// verification with probability 1.
func TestTicketTokenCodec_ForgeryResistance(t *testing.T) {
	codec := NewTicketTokenCodec([]byte("qr-secret"))
	token, err := codec.Sign(TicketPayload{TicketID: "tid-1", EventID: "eid-1", IssuedAt: 123})
	require.NoError(t, err)

	mutated := []rune(token)
	mid := len(mutated) / 2
	if mutated[mid] == 'A' {
		mutated[mid] = 'B'
	} else {
		mutated[mid] = 'A'
	}
	result := codec.Verify(string(mutated))
	assert.False(t, result.Valid)
}

func TestTicketTokenCodec_DifferentSecretFailsVerification(t *testing.T) {
	signer := NewTicketTokenCodec([]byte("secret-a"))
	verifier := NewTicketTokenCodec([]byte("secret-b"))

	token, err := signer.Sign(TicketPayload{TicketID: "tid-1", EventID: "eid-1", IssuedAt: 1})
	require.NoError(t, err)

	result := verifier.Verify(token)
	assert.False(t, result.Valid)
	assert.Equal(t, "sig", result.Err)
}

func TestTicketTokenCodec_MalformedInputNeverPanics(t *testing.T) {
	codec := NewTicketTokenCodec([]byte("qr-secret"))

	for _, bad := range []string{"", "not-base64url!!!", strings.Repeat("A", 8), "e30="} {
		assert.NotPanics(t, func() {
			result := codec.Verify(bad)
			assert.False(t, result.Valid)
			assert.Equal(t, "malformed", result.Err)
		})
	}
}

func TestTicketTokenCodec_FieldOrderIsCanonical(t *testing.T) {
	codec := NewTicketTokenCodec([]byte("qr-secret"))
	token, err := codec.Sign(TicketPayload{TicketID: "tid-1", EventID: "eid-1", IssuedAt: 1})
	require.NoError(t, err)

	token2, err := codec.Sign(TicketPayload{TicketID: "tid-1", EventID: "eid-1", IssuedAt: 1})
	require.NoError(t, err)
	assert.Equal(t, token, token2, "identical payloads sign to identical tokens")
}
