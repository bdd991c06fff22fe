package stream

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Signature verification errors. Callers map these to 401.
var (
	ErrMissingSignature = errors.New("stream: missing signature header")
	ErrBadSignature     = errors.New("stream: signature mismatch")
)

// VerifySignature checks a webhook signature header against the raw request body.
// Header format: "t=<unix ts>,v1=<hex hmac-sha256>". The digest is an
// HMAC-SHA256 of the raw body keyed with the shared webhook secret; comparison
// is constant-time. An empty secret is the caller's responsibility to handle
// (verification skipped, degraded security).
func VerifySignature(rawBody []byte, header, secret string) error {
	if header == "" {
		return ErrMissingSignature
	}

	var provided string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		if kv[0] == "v1" {
			provided = kv[1]
		}
	}
	if provided == "" {
		return ErrMissingSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return ErrBadSignature
	}
	return nil
}

// SignBody computes the v1 digest for a body; used by tests and local tooling.
func SignBody(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
