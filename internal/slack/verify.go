package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// maxSignatureAge rejects replayed requests per Slack's guidance.
const maxSignatureAge = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing slack signature headers")
	ErrStaleTimestamp   = errors.New("slack request timestamp too old")
	ErrBadSignature     = errors.New("slack signature mismatch")
)

// VerifySignature checks the v0 signing scheme: the signature is the
// HMAC-SHA256 of "v0:<timestamp>:<raw body>" under the signing secret.
func VerifySignature(secret, timestamp, signature string, body []byte, now time.Time) error {
	if timestamp == "" || signature == "" {
		return ErrMissingSignature
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrMissingSignature)
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > maxSignatureAge || age < -maxSignatureAge {
		return ErrStaleTimestamp
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:", timestamp)
	mac.Write(body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}
