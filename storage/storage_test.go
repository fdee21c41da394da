package storage

import (
	"errors"
	"testing"
)

func TestDecodeSettingsEntity(t *testing.T) {
	data := []byte(`{"PartitionKey":"u1","RowKey":"u1","ApplicationsPerStatus":5,"ShowClosed":true}`)
	s, err := decodeSettingsEntity(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.ApplicationsPerStatus != 5 || !s.ShowClosed {
		t.Fatalf("unexpected settings: %+v", s)
	}
}

func TestContinuationTokenRoundTrip(t *testing.T) {
	token := encodeContinuationToken("user-1", "app-42")
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	pk, rk, err := decodeContinuationToken(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pk != "user-1" || rk != "app-42" {
		t.Fatalf("unexpected keys: %q %q", pk, rk)
	}
}

func TestContinuationTokenEmptyWhenExhausted(t *testing.T) {
	if token := encodeContinuationToken("", ""); token != "" {
		t.Fatalf("expected empty token, got %q", token)
	}
}

func TestDecodeContinuationTokenRejectsGarbage(t *testing.T) {
	for _, token := range []string{"not base64!!", "bm8tc2VwYXJhdG9y"} {
		_, _, err := decodeContinuationToken(token)
		var invalid invalidContinuationTokenError
		if !errors.As(err, &invalid) {
			t.Fatalf("token %q: expected invalid token error, got %v", token, err)
		}
	}
}

func TestSanitizeKeyEscapesQuotes(t *testing.T) {
	if got := sanitizeKey("o'brien"); got != "o''brien" {
		t.Fatalf("unexpected sanitized key: %q", got)
	}
}
