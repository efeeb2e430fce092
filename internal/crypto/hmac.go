package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// HMACAuth holds the L2 credentials for HMAC-authenticated requests against
// the Polymarket CLOB API.
type HMACAuth struct {
	Key        string // API key
	Secret     string // base64-encoded API secret
	Passphrase string // API passphrase
}

// L2Headers returns the HTTP headers for an authenticated CLOB request. The
// signature is HMAC-SHA256(base64-decoded secret, timestamp+method+path+body)
// encoded as base64.
//
// Returned header keys: POLY_ADDRESS, POLY_API_KEY, POLY_TIMESTAMP,
// POLY_PASSPHRASE, POLY_SIGNATURE.
func (h *HMACAuth) L2Headers(address, method, path, body string) map[string]string {
	return h.L2HeadersAt(address, method, path, body, time.Now().Unix())
}

// L2HeadersAt is L2Headers with a caller-supplied Unix timestamp, for
// deterministic signing in tests.
func (h *HMACAuth) L2HeadersAt(address, method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)

	secretBytes, err := base64.StdEncoding.DecodeString(h.Secret)
	if err != nil {
		// Fall back to raw bytes so the caller gets an obviously-wrong
		// signature rather than a panic.
		secretBytes = []byte(h.Secret)
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(ts + method + path + body))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_ADDRESS":    address,
		"POLY_API_KEY":    h.Key,
		"POLY_TIMESTAMP":  ts,
		"POLY_PASSPHRASE": h.Passphrase,
		"POLY_SIGNATURE":  sig,
	}
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
