package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
)

// TicketPayload is the canonical signed content of a ticket QR token (§6.3).
// Field order in the JSON produced by Sign is fixed: tid, eid, iat, sig.
type TicketPayload struct {
	TicketID string `json:"tid"`
	EventID  string `json:"eid"`
	IssuedAt int64  `json:"iat"`
}

// signedTicketPayload is TicketPayload plus its signature, in the stable field order
// the codec both produces and expects on Verify.
type signedTicketPayload struct {
	TicketID string `json:"tid"`
	EventID  string `json:"eid"`
	IssuedAt int64  `json:"iat"`
	Sig      string `json:"sig"`
}

// VerifyResult is the outcome of TicketTokenCodec.Verify.
type VerifyResult struct {
	Valid    bool
	TicketID string
	EventID  string
	IssuedAt int64
	Err      string // "sig" | "malformed", empty when Valid
}

// TicketTokenCodec produces and verifies HMAC-signed, base64url-encoded ticket tokens
// (§4.2, §6.3). It enforces no revocation or single-use semantics of its own — tokens
// are idempotently verifiable offline without a database lookup; GateValidator owns
// check-in state.
type TicketTokenCodec struct {
	secret []byte
}

// NewTicketTokenCodec constructs a codec keyed by secret (the configured QR_SECRET_KEY).
func NewTicketTokenCodec(secret []byte) *TicketTokenCodec {
	return &TicketTokenCodec{secret: secret}
}

const sigTruncateLen = 16

// Sign produces a ticket token for payload: canonical JSON of {tid,eid,iat}, HMAC-SHA256
// over that JSON truncated to the first 16 hex characters, then the full
// {tid,eid,iat,sig} object base64url-encoded.
func (c *TicketTokenCodec) Sign(payload TicketPayload) (string, error) {
	sig, err := c.sign(payload)
	if err != nil {
		return "", err
	}
	signed := signedTicketPayload{
		TicketID: payload.TicketID,
		EventID:  payload.EventID,
		IssuedAt: payload.IssuedAt,
		Sig:      sig,
	}
	raw, err := json.Marshal(signed)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Verify decodes and validates token, recomputing its HMAC and comparing in constant
// time. It never panics: malformed input yields {Valid:false, Err:"malformed"}.
func (c *TicketTokenCodec) Verify(token string) VerifyResult {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return VerifyResult{Valid: false, Err: "malformed"}
	}
	var signed signedTicketPayload
	if err := json.Unmarshal(raw, &signed); err != nil {
		return VerifyResult{Valid: false, Err: "malformed"}
	}
	if signed.TicketID == "" || signed.EventID == "" || signed.Sig == "" {
		return VerifyResult{Valid: false, Err: "malformed"}
	}

	expected, err := c.sign(TicketPayload{
		TicketID: signed.TicketID,
		EventID:  signed.EventID,
		IssuedAt: signed.IssuedAt,
	})
	if err != nil {
		return VerifyResult{Valid: false, Err: "malformed"}
	}

	if !hmac.Equal([]byte(expected), []byte(signed.Sig)) {
		return VerifyResult{Valid: false, Err: "sig"}
	}

	return VerifyResult{
		Valid:    true,
		TicketID: signed.TicketID,
		EventID:  signed.EventID,
		IssuedAt: signed.IssuedAt,
	}
}

func (c *TicketTokenCodec) sign(payload TicketPayload) (string, error) {
	canonical, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(canonical)
	full := hex.EncodeToString(mac.Sum(nil))
	if len(full) < sigTruncateLen {
		return "", errors.New("ticket_token_codec: unexpectedly short hmac digest")
	}
	return full[:sigTruncateLen], nil
}
