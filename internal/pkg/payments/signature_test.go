package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"
)

func signHeader(t time.Time, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(t.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", t.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	secret := "whsec_test"
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name    string
		payload []byte
		header  string
		secret  string
		wantErr error
	}{
		{
			name:    "valid signature",
			payload: payload,
			header:  signHeader(now, payload, secret),
			secret:  secret,
		},
		{
			name:    "missing header",
			payload: payload,
			header:  "",
			secret:  secret,
			wantErr: ErrMissingSignature,
		},
		{
			name:    "wrong secret",
			payload: payload,
			header:  signHeader(now, payload, "whsec_other"),
			secret:  secret,
			wantErr: ErrInvalidSignature,
		},
		{
			name:    "tampered body",
			payload: []byte(`{"id":"evt_1","type":"checkout.session.completed","amount":1}`),
			header:  signHeader(now, payload, secret),
			secret:  secret,
			wantErr: ErrInvalidSignature,
		},
		{
			name:    "stale timestamp",
			payload: payload,
			header:  signHeader(now.Add(-10*time.Minute), payload, secret),
			secret:  secret,
			wantErr: ErrInvalidSignature,
		},
		{
			name:    "future timestamp",
			payload: payload,
			header:  signHeader(now.Add(10*time.Minute), payload, secret),
			secret:  secret,
			wantErr: ErrInvalidSignature,
		},
		{
			name:    "garbage header",
			payload: payload,
			header:  "not-a-signature",
			secret:  secret,
			wantErr: ErrInvalidSignature,
		},
		{
			name:    "no v1 entries",
			payload: payload,
			header:  fmt.Sprintf("t=%d", now.Unix()),
			secret:  secret,
			wantErr: ErrInvalidSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifySignatureAt(tt.payload, tt.header, tt.secret, DefaultTolerance, now)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected signature to verify, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestVerifySignatureMultipleEntries(t *testing.T) {
	payload := []byte(`{"id":"evt_2"}`)
	secret := "whsec_test"
	now := time.Unix(1_700_000_000, 0)

	// A stale entry from a rotated secret followed by a valid one.
	valid := signHeader(now, payload, secret)
	header := fmt.Sprintf("t=%d,v1=%s,%s", now.Unix(), hex.EncodeToString([]byte("bogus-signature-entry")), valid[len(fmt.Sprintf("t=%d,", now.Unix())):])

	if err := verifySignatureAt(payload, header, secret, DefaultTolerance, now); err != nil {
		t.Fatalf("expected one of multiple v1 entries to verify, got %v", err)
	}
}

func TestVerifySignatureZeroToleranceSkipsAgeCheck(t *testing.T) {
	payload := []byte(`{"id":"evt_3"}`)
	secret := "whsec_test"
	old := time.Unix(1_600_000_000, 0)

	err := verifySignatureAt(payload, signHeader(old, payload, secret), secret, 0, time.Unix(1_700_000_000, 0))
	if err != nil {
		t.Fatalf("expected zero tolerance to skip the age check, got %v", err)
	}
}
