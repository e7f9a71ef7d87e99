package stripe

import (
	"net/http"
	"testing"

	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
)

func TestNormalizeEnv(t *testing.T) {
	if env, err := normalizeEnv(""); err != nil || env != testEnv {
		t.Fatalf("empty env should default to test, got %q err %v", env, err)
	}
	if env, err := normalizeEnv(" LIVE "); err != nil || env != liveEnv {
		t.Fatalf("expected live env, got %q err %v", env, err)
	}
	if _, err := normalizeEnv("staging"); err == nil {
		t.Fatalf("expected error for unknown env")
	}
}

func TestValidateAPIKey(t *testing.T) {
	if err := validateAPIKey(testEnv, "sk_test_abc"); err != nil {
		t.Fatalf("test key in test env: %v", err)
	}
	if err := validateAPIKey(testEnv, "sk_live_abc"); err == nil {
		t.Fatalf("live key in test env should fail")
	}
	if err := validateAPIKey(liveEnv, "rk_live_abc"); err != nil {
		t.Fatalf("restricted live key in live env: %v", err)
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusUnprocessableEntity, pkgerrors.CodeStateConflict},
		{http.StatusBadGateway, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	if out := c.redact("destination_account", "acct_123"); out != "[REDACTED]" {
		t.Fatalf("expected account value redacted, got %v", out)
	}
	if out := c.redact("amount", int64(500)); out != int64(500) {
		t.Fatalf("amount should not be redacted")
	}
}
