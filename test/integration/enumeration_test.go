package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/credkit/session-service/internal/config"
)

func postRaw(t *testing.T, client *http.Client, url string, body any) (*http.Response, string) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(raw)
}

// A login failure must read identically whether the account is missing or
// the password is wrong: same status, same bytes.
func TestLoginFailureIndistinguishable(t *testing.T) {
	env := newAuthTestServer(t, nil)
	defer env.Close()

	env.register(t, "exists@example.com", "Existing#Pass1")

	respUnknown, bodyUnknown := postRaw(t, env.Client, env.URL+"/api/v1/auth/login", map[string]string{
		"email":    "ghost@example.com",
		"password": "Whatever#Pass1",
	})
	respWrong, bodyWrong := postRaw(t, env.Client, env.URL+"/api/v1/auth/login", map[string]string{
		"email":    "exists@example.com",
		"password": "Whatever#Pass1",
	})

	if respUnknown.StatusCode != http.StatusUnauthorized || respWrong.StatusCode != http.StatusUnauthorized {
		t.Fatalf("statuses %d/%d want 401/401", respUnknown.StatusCode, respWrong.StatusCode)
	}
	if bodyUnknown != bodyWrong {
		t.Fatalf("login failure bodies differ:\n%s\n%s", bodyUnknown, bodyWrong)
	}
}

// With delivery configured, the forgot-password response carries no
// account-existence signal at the byte level either.
func TestForgotPasswordBodiesIdentical(t *testing.T) {
	env := newAuthTestServer(t, func(cfg *config.Config) {
		cfg.SMTPUser = "mailer"
		cfg.SMTPPassword = "secret"
	})
	defer env.Close()

	env.register(t, "wired@example.com", "Wired#Pass1234")

	respKnown, bodyKnown := postRaw(t, env.Client, env.URL+"/api/v1/auth/password/forgot", map[string]string{
		"email": "wired@example.com",
	})
	respUnknown, bodyUnknown := postRaw(t, env.Client, env.URL+"/api/v1/auth/password/forgot", map[string]string{
		"email": "phantom@example.com",
	})
	if respKnown.StatusCode != http.StatusOK || respUnknown.StatusCode != http.StatusOK {
		t.Fatalf("statuses %d/%d want 200/200", respKnown.StatusCode, respUnknown.StatusCode)
	}
	if bodyKnown != bodyUnknown {
		t.Fatalf("forgot bodies differ:\n%s\n%s", bodyKnown, bodyUnknown)
	}
}
