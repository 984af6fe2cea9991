package integration

import (
	"net/http"
	"testing"

	"github.com/credkit/session-service/internal/config"
)

func requireVerification(cfg *config.Config) {
	cfg.RequireEmailVerification = true
	cfg.SMTPUser = "mailer"
	cfg.SMTPPassword = "secret"
}

func TestEmailVerificationGatesLogin(t *testing.T) {
	env := newAuthTestServer(t, requireVerification)
	defer env.Close()

	resp, regEnv := doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/register", map[string]string{
		"email":    "verify@example.com",
		"name":     "Verify Me",
		"password": "Verify#Pass123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status=%d want 201", resp.StatusCode)
	}
	if dataField(t, regEnv, "message") == "" {
		t.Fatal("register returned no message")
	}

	// Unverified accounts cannot log in, even with correct credentials.
	resp, errEnv := doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/login", map[string]string{
		"email":    "verify@example.com",
		"password": "Verify#Pass123",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unverified login status=%d want 403", resp.StatusCode)
	}
	if errEnv.Error == nil || errEnv.Error.Code != "FORBIDDEN" {
		t.Fatalf("unexpected envelope: %#v", errEnv.Error)
	}

	code := env.Mailer.lastCode(t)
	resp, _ = doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/verify/confirm", map[string]string{
		"email": "verify@example.com",
		"code":  code,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify confirm status=%d want 200", resp.StatusCode)
	}

	env.login(t, "verify@example.com", "Verify#Pass123")

	// Confirming an already-verified account is a no-op success.
	resp, _ = doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/verify/confirm", map[string]string{
		"email": "verify@example.com",
		"code":  "000000",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat confirm status=%d want 200", resp.StatusCode)
	}
}

// Re-registering an unverified account with the matching password resends
// the code; a wrong password reads as Conflict so the endpoint cannot be
// used to probe passwords.
func TestRegisterUnverifiedDuplicate(t *testing.T) {
	env := newAuthTestServer(t, requireVerification)
	defer env.Close()

	resp, _ := doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/register", map[string]string{
		"email":    "pending@example.com",
		"name":     "Pending",
		"password": "Pending#Pass12",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status=%d want 201", resp.StatusCode)
	}

	resp, _ = doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/register", map[string]string{
		"email":    "pending@example.com",
		"name":     "Pending",
		"password": "Pending#Pass12",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resend register status=%d want 200", resp.StatusCode)
	}

	resp, errEnv := doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/register", map[string]string{
		"email":    "pending@example.com",
		"name":     "Pending",
		"password": "Wrong#Pass1234",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("mismatched password register status=%d want 409", resp.StatusCode)
	}
	if errEnv.Error == nil || errEnv.Error.Code != "CONFLICT" {
		t.Fatalf("unexpected envelope: %#v", errEnv.Error)
	}
}

func TestVerifyRequestIsGenericForUnknownEmail(t *testing.T) {
	env := newAuthTestServer(t, requireVerification)
	defer env.Close()

	resp, reqEnv := doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/verify/request", map[string]string{
		"email": "nobody@example.com",
	})
	if resp.StatusCode != http.StatusOK || !reqEnv.Success {
		t.Fatalf("verify request status=%d want 200", resp.StatusCode)
	}
}

// A fresh code replaces the previous one: only the latest code verifies.
func TestVerificationCodeReplacedOnResend(t *testing.T) {
	env := newAuthTestServer(t, requireVerification)
	defer env.Close()

	resp, _ := doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/register", map[string]string{
		"email":    "replace@example.com",
		"name":     "Replace",
		"password": "Replace#Pass12",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status=%d", resp.StatusCode)
	}
	firstCode := env.Mailer.lastCode(t)

	resp, _ = doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/verify/request", map[string]string{
		"email": "replace@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resend status=%d", resp.StatusCode)
	}
	secondCode := env.Mailer.lastCode(t)

	if firstCode != secondCode {
		resp, errEnv := doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/verify/confirm", map[string]string{
			"email": "replace@example.com",
			"code":  firstCode,
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("stale code status=%d want 400", resp.StatusCode)
		}
		if errEnv.Error == nil || errEnv.Error.Code != "INVALID_CODE" {
			t.Fatalf("unexpected envelope: %#v", errEnv.Error)
		}
	}

	resp, _ = doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/verify/confirm", map[string]string{
		"email": "replace@example.com",
		"code":  secondCode,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("latest code status=%d want 200", resp.StatusCode)
	}
}

func TestVerificationLinkChannel(t *testing.T) {
	env := newAuthTestServer(t, func(cfg *config.Config) {
		requireVerification(cfg)
		cfg.VerificationChannel = config.VerificationChannelLink
		cfg.VerifyBaseURL = "http://localhost:3000/verify-email"
	})
	defer env.Close()

	resp, _ := doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/register", map[string]string{
		"email":    "link@example.com",
		"name":     "Link",
		"password": "Linked#Pass123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status=%d", resp.StatusCode)
	}
	token := env.Mailer.lastLinkToken(t)

	// Link confirmation carries the token alone, no email.
	resp, _ = doJSON(t, env.Client, http.MethodPost, env.URL+"/api/v1/auth/verify/confirm", map[string]string{
		"token": token,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("link confirm status=%d want 200", resp.StatusCode)
	}
	env.login(t, "link@example.com", "Linked#Pass123")
}
