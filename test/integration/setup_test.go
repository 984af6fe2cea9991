package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/credkit/session-service/internal/config"
	"github.com/credkit/session-service/internal/database"
	"github.com/credkit/session-service/internal/http/handler"
	"github.com/credkit/session-service/internal/http/router"
	"github.com/credkit/session-service/internal/repository"
	"github.com/credkit/session-service/internal/security"
	"github.com/credkit/session-service/internal/service"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// captureMailer records outbound messages so tests can pull codes and
// links out of the delivered bodies.
type captureMailer struct {
	mu     sync.Mutex
	bodies []string
	fail   bool
}

func (m *captureMailer) Send(_ context.Context, _, _, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("delivery refused")
	}
	m.bodies = append(m.bodies, htmlBody)
	return nil
}

var (
	codeRe = regexp.MustCompile(`<h2>(\d{6})</h2>`)
	linkRe = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)
)

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.bodies) == 0 {
		t.Fatal("no mail captured")
	}
	match := codeRe.FindStringSubmatch(m.bodies[len(m.bodies)-1])
	if match == nil {
		t.Fatalf("no code in mail body: %s", m.bodies[len(m.bodies)-1])
	}
	return match[1]
}

func (m *captureMailer) lastLinkToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.bodies) == 0 {
		t.Fatal("no mail captured")
	}
	match := linkRe.FindStringSubmatch(m.bodies[len(m.bodies)-1])
	if match == nil {
		t.Fatalf("no link token in mail body: %s", m.bodies[len(m.bodies)-1])
	}
	return match[1]
}

type testEnv struct {
	URL    string
	Client *http.Client
	DB     *gorm.DB
	Mailer *captureMailer
	Close  func()
}

func newAuthTestServer(t *testing.T, override func(cfg *config.Config)) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{
		Env:                 "test",
		JWTSecret:           "0123456789abcdef0123456789abcdef",
		AccessTokenTTL:      15 * time.Minute,
		RefreshTokenTTL:     24 * time.Hour,
		MaxLoginAttempts:    5,
		LockoutWindow:       15 * time.Minute,
		VerificationChannel: config.VerificationChannelCode,
		VerifyTokenTTL:      2 * time.Hour,
		ResetTokenTTL:       30 * time.Minute,
		RefreshTransport:    config.RefreshTransportCookie,
		CookieSameSite:      "lax",
		SMTPSendTimeout:     time.Second,
		APIRateLimitPerMin:  1000,
		AuthRateLimitPerMin: 1000,
	}
	if override != nil {
		override(cfg)
	}

	mailer := &captureMailer{}
	repos := repository.New(db)
	jwtMgr := security.NewJWTManager(cfg.JWTSecret)
	tokenSvc := service.NewTokenService(jwtMgr, repos.RefreshTokens, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	throttle := service.NewLoginThrottle(cfg.MaxLoginAttempts, cfg.LockoutWindow)
	authSvc := service.NewAuthService(cfg, tokenSvc, throttle, repos, mailer)
	cookieMgr := security.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure, cfg.CookieSameSite)

	r := router.NewRouter(router.Dependencies{
		AuthHandler:      handler.NewAuthHandler(cfg, authSvc, tokenSvc, cookieMgr),
		HealthHandler:    handler.NewHealthHandler(nil, nil),
		JWTManager:       jwtMgr,
		CORSOrigins:      []string{"http://localhost"},
		APIRateLimitRPM:  cfg.APIRateLimitPerMin,
		AuthRateLimitRPM: cfg.AuthRateLimitPerMin,
	})

	srv := httptest.NewServer(r)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := srv.Client()
	client.Jar = jar

	return &testEnv{URL: srv.URL, Client: client, DB: db, Mailer: mailer, Close: srv.Close}
}

func (e *testEnv) register(t *testing.T, email, password string) {
	t.Helper()
	resp, env := doJSON(t, e.Client, http.MethodPost, e.URL+"/api/v1/auth/register", map[string]string{
		"email":    email,
		"name":     "Test User",
		"password": password,
	})
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("register failed status=%d success=%v", resp.StatusCode, env.Success)
	}
}

func (e *testEnv) login(t *testing.T, email, password string) apiEnvelope {
	t.Helper()
	resp, env := doJSON(t, e.Client, http.MethodPost, e.URL+"/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("login failed status=%d success=%v", resp.StatusCode, env.Success)
	}
	return env
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, apiEnvelope) {
	t.Helper()
	var payload []byte
	var err error
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	var env apiEnvelope
	if buf.Len() > 0 {
		_ = json.Unmarshal(buf.Bytes(), &env)
	}
	return resp, env
}

func dataField(t *testing.T, env apiEnvelope, key string) string {
	t.Helper()
	var data map[string]any
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	v, ok := data[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		t.Fatalf("data field %q is not a string: %#v", key, v)
	}
	return s
}
