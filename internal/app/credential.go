// Package app holds the application services and business logic.
package app

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

var (
	// ErrCodeMalformed indicates the raw code is neither JSON nor a URL
	// carrying the expected fields.
	ErrCodeMalformed = errors.New("malformed scan code")
	// ErrCodeInvalid indicates the code parsed but has wrongly typed fields
	// or a bad signature.
	ErrCodeInvalid = errors.New("invalid scan code")
	// ErrCodeExpired indicates the code is past its expiration time.
	ErrCodeExpired = errors.New("scan code expired")
)

// Oversized input is rejected before any parsing.
const maxRawCodeLen = 2000

// CredentialPayload is the signed content of a scan code.
type CredentialPayload struct {
	SID string `json:"sid"`
	Exp int64  `json:"exp"`
	Sig string `json:"sig"`
}

// CredentialService issues and verifies HMAC-signed, expiring scan codes.
// The secret is injected at construction and never leaves this service.
type CredentialService struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

// NewCredentialService creates a CredentialService. validityMinutes bounds
// how long an issued code remains redeemable.
func NewCredentialService(secret string, validityMinutes int) (*CredentialService, error) {
	if secret == "" {
		return nil, errors.New("signing secret is required")
	}
	if validityMinutes <= 0 {
		return nil, errors.New("validity must be positive")
	}
	return &CredentialService{
		secret:   []byte(secret),
		validity: time.Duration(validityMinutes) * time.Minute,
		now:      time.Now,
	}, nil
}

// sig = HMAC-SHA256(secret, sid + "." + exp), lowercase hex.
func (s *CredentialService) sign(sid string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(sid + "." + strconv.FormatInt(exp, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *CredentialService) verifySignature(sid string, exp int64, sig string) bool {
	expected := s.sign(sid, exp)
	// hmac.Equal is constant time and safe on mismatched lengths.
	return hmac.Equal([]byte(expected), []byte(sig))
}

// Issue builds a signed payload for the given session id, expiring after
// the configured validity window.
func (s *CredentialService) Issue(sessionID string) CredentialPayload {
	exp := s.now().Unix() + int64(s.validity/time.Second)
	return CredentialPayload{
		SID: sessionID,
		Exp: exp,
		Sig: s.sign(sessionID, exp),
	}
}

// EncodeJSON renders the payload in its JSON wire form, the string that
// gets encoded into a scannable code.
func (s *CredentialService) EncodeJSON(p CredentialPayload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// QRCodePNG issues a payload for the session and renders it as a PNG.
func (s *CredentialService) QRCodePNG(sessionID string) ([]byte, error) {
	data, err := s.EncodeJSON(s.Issue(sessionID))
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(data, qrcode.Medium, 400)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// Verify checks a raw scan code and returns the session id it names.
// Checks run cheapest first: structure, then field types, then expiry,
// then signature. Failures map to ErrCodeMalformed, ErrCodeInvalid, or
// ErrCodeExpired.
func (s *CredentialService) Verify(raw string) (string, error) {
	if len(raw) > maxRawCodeLen {
		return "", ErrCodeMalformed
	}

	fields, ok := decodeRawCode(raw)
	if !ok {
		return "", ErrCodeMalformed
	}

	sid, sidOK := fields["sid"].(string)
	sig, sigOK := fields["sig"].(string)
	exp, expOK := asUnixSeconds(fields["exp"])
	if !sidOK || !sigOK || !expOK {
		return "", ErrCodeInvalid
	}

	if s.now().Unix() > exp {
		return "", ErrCodeExpired
	}

	if !s.verifySignature(sid, exp, sig) {
		return "", ErrCodeInvalid
	}
	return sid, nil
}

// decodeRawCode parses a raw code as compact JSON first, then as a URL with
// sid/exp/sig query parameters. It reports false when neither form yields
// all three fields. Values keep their parsed types so the caller can report
// type mismatches separately from structural failures.
func decodeRawCode(raw string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		if hasAll(obj, "sid", "exp", "sig") {
			return obj, true
		}
		return nil, false
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return nil, false
	}
	q := u.Query()
	sid, exp, sig := q.Get("sid"), q.Get("exp"), q.Get("sig")
	if sid == "" || exp == "" || sig == "" {
		return nil, false
	}
	fields := map[string]any{"sid": sid, "sig": sig}
	if n, err := strconv.ParseInt(exp, 10, 64); err == nil {
		fields["exp"] = n
	} else {
		// Left as a string so the type check rejects it as invalid.
		fields["exp"] = exp
	}
	return fields, true
}

func hasAll(obj map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			return false
		}
	}
	return true
}

// asUnixSeconds accepts the integer shapes the two decode paths produce:
// int64 from the URL path, float64 from encoding/json.
func asUnixSeconds(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}
