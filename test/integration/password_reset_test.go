package integration

import (
	"net/http"
	"testing"

	"github.com/credkit/session-service/internal/config"
)

func TestPasswordResetFlow(t *testing.T) {
	env := newAuthTestServer(t, func(cfg *config.Config) {
		cfg.RefreshTransport = config.RefreshTransportBody
	})
	defer env.Close()

	env.register(t, "reset@example.com", "Original#Pass1")
	loginEnv := env.login(t, "reset@example.com", "Original#Pass1")
	oldRefresh := dataField(t, loginEnv, "refresh_token")

	// No SMTP credentials configured: the code is echoed for development.
	resp, forgotEnv := doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/password/forgot", map[string]string{
		"email": "reset@example.com",
	})
	if resp.StatusCode != http.StatusOK || !forgotEnv.Success {
		t.Fatalf("forgot status=%d want 200", resp.StatusCode)
	}
	code := dataField(t, forgotEnv, "dev_code")
	if len(code) != 6 {
		t.Fatalf("dev_code %q: want 6-digit code", code)
	}

	resp, _ = doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/password/reset", map[string]string{
		"email":        "reset@example.com",
		"code":         code,
		"new_password": "Brand#New#Pass2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status=%d want 200", resp.StatusCode)
	}

	// Old credential is dead, new one works.
	resp, _ = doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/login", map[string]string{
		"email":    "reset@example.com",
		"password": "Original#Pass1",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old password login status=%d want 401", resp.StatusCode)
	}
	env.login(t, "reset@example.com", "Brand#New#Pass2")

	// Every session issued before the reset is revoked.
	resp, _ = doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/refresh", map[string]string{
		"refresh_token": oldRefresh,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("pre-reset refresh token status=%d want 401", resp.StatusCode)
	}

	// The code is single-use.
	resp, errEnv := doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/password/reset", map[string]string{
		"email":        "reset@example.com",
		"code":         code,
		"new_password": "Another#Pass3",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("code reuse status=%d want 400", resp.StatusCode)
	}
	if errEnv.Error == nil || errEnv.Error.Code != "INVALID_CODE" {
		t.Fatalf("unexpected code-reuse envelope: %#v", errEnv.Error)
	}
}

// Requesting a reset for an unknown address answers with the same generic
// message as a known one.
func TestPasswordResetUnknownEmailIsGeneric(t *testing.T) {
	env := newAuthTestServer(t, func(cfg *config.Config) {
		cfg.SMTPUser = "mailer"
		cfg.SMTPPassword = "secret"
	})
	defer env.Close()

	env.register(t, "known@example.com", "Known#Pass1234")

	resp, knownEnv := doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/password/forgot", map[string]string{
		"email": "known@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("known forgot status=%d", resp.StatusCode)
	}
	resp, unknownEnv := doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/password/forgot", map[string]string{
		"email": "unknown@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unknown forgot status=%d", resp.StatusCode)
	}
	if dataField(t, knownEnv, "message") != dataField(t, unknownEnv, "message") {
		t.Fatal("forgot responses must be identical for known and unknown emails")
	}
	if dataField(t, knownEnv, "dev_code") != "" {
		t.Fatal("dev_code must not be echoed when SMTP is configured")
	}
}

func TestPasswordResetWithCapturedMailCode(t *testing.T) {
	env := newAuthTestServer(t, func(cfg *config.Config) {
		cfg.SMTPUser = "mailer"
		cfg.SMTPPassword = "secret"
	})
	defer env.Close()

	env.register(t, "mailed@example.com", "Mailed#Pass123")
	resp, _ := doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/password/forgot", map[string]string{
		"email": "mailed@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("forgot status=%d", resp.StatusCode)
	}
	code := env.Mailer.lastCode(t)

	resp, _ = doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/password/reset", map[string]string{
		"email":        "mailed@example.com",
		"code":         code,
		"new_password": "Mailed#Pass456",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status=%d want 200", resp.StatusCode)
	}
	env.login(t, "mailed@example.com", "Mailed#Pass456")
}

func TestPasswordResetDeliveryFailureStaysGeneric(t *testing.T) {
	env := newAuthTestServer(t, func(cfg *config.Config) {
		cfg.SMTPUser = "mailer"
		cfg.SMTPPassword = "secret"
	})
	defer env.Close()
	env.Mailer.fail = true

	env.register(t, "undeliverable@example.com", "Valid#Pass1234")
	resp, forgotEnv := doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/password/forgot", map[string]string{
		"email": "undeliverable@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("forgot status=%d want 200 even when delivery fails", resp.StatusCode)
	}
	if dataField(t, forgotEnv, "dev_code") != "" {
		t.Fatal("dev_code must not leak on delivery failure")
	}
}
