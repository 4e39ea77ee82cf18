package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is the accepted clock skew between the signature timestamp
// and the receiving host.
const DefaultTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("payments: missing signature header")
	ErrInvalidSignature = errors.New("payments: signature verification failed")
)

// signedHeader is the parsed form of a "t=...,v1=...,v1=..." signature header.
type signedHeader struct {
	timestamp  time.Time
	signatures [][]byte
}

// VerifySignature checks the provider's signed-webhook scheme: the header
// carries a unix timestamp and one or more hex HMAC-SHA256 signatures of
// "<timestamp>.<payload>". A signature older than the tolerance window is
// rejected even if it otherwise verifies.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration) error {
	return verifySignatureAt(payload, header, secret, tolerance, time.Now())
}

func verifySignatureAt(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}

	parsed, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	expected := computeSignature(parsed.timestamp, payload, secret)
	match := false
	for _, sig := range parsed.signatures {
		if hmac.Equal(expected, sig) {
			match = true
			break
		}
	}
	if !match {
		return ErrInvalidSignature
	}

	if tolerance > 0 {
		age := now.Sub(parsed.timestamp)
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
		}
	}
	return nil
}

func parseSignatureHeader(header string) (*signedHeader, error) {
	parsed := &signedHeader{}
	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "t":
			ts, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			parsed.timestamp = time.Unix(ts, 0)
		case "v1":
			sig, err := hex.DecodeString(parts[1])
			if err != nil {
				// Skip malformed entries; another v1 may still verify.
				continue
			}
			parsed.signatures = append(parsed.signatures, sig)
		}
	}
	if parsed.timestamp.IsZero() || len(parsed.signatures) == 0 {
		return nil, ErrInvalidSignature
	}
	return parsed, nil
}

func computeSignature(t time.Time, payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(t.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}
