package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"rfphub.org/internal/auth"
	"rfphub.org/internal/otp"
	"rfphub.org/internal/rfp"
	"rfphub.org/internal/stream"
)

type recordingMailer struct {
	sent int
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.sent++
	return nil
}

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T

	userStore *auth.MemoryStore
	codeStore *otp.MemoryStore
	mailer    *recordingMailer
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("RFPHUB_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	userStore := auth.NewMemoryStore()
	users, err := auth.NewService(userStore)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}

	codeStore := otp.NewMemoryStore()
	mailer := &recordingMailer{}
	codes, err := otp.NewVerifier(codeStore, mailer)
	if err != nil {
		t.Fatalf("otp verifier: %v", err)
	}

	api := New(ReadyProbe{}, "test", users, codes, rfp.NewInMemory(), stream.New())
	api.rateBurst = 1000
	api.ratePerSec = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	client := srv.Client()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &apiClient{
		baseURL:   srv.URL,
		client:    client,
		t:         t,
		userStore: userStore,
		codeStore: codeStore,
		mailer:    mailer,
	}
}

// seedUser inserts an account directly into the store, bypassing signup.
func (c *apiClient) seedUser(email, password string, typ auth.UserType, role auth.Role, status auth.Status) *auth.User {
	c.t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		c.t.Fatalf("hash password: %v", err)
	}
	user := &auth.User{
		Name:         "Test " + email,
		Email:        email,
		PasswordHash: hash,
		Type:         typ,
		Role:         role,
		Status:       status,
	}
	if err := c.userStore.Create(context.Background(), user); err != nil {
		c.t.Fatalf("seed user: %v", err)
	}
	return user
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) login(email, password string) string {
	c.t.Helper()
	resp := c.post("/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected login status: %d", resp.StatusCode)
	}
	var payload loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode login response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatal("empty token issued")
	}
	return payload.Token
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthAndInfo(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["service"] != "rfphub-api" {
		t.Fatalf("unexpected service name: %v", body["service"])
	}

	resp = api.get("/v1/info", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("info status: %d", resp.StatusCode)
	}
	info := decode[map[string]any](t, resp)
	if info["version"] != "test" {
		t.Fatalf("unexpected version: %v", info["version"])
	}
}

func TestLoginIssuesTokenAndCookie(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("admin@gmail.com", "pass-123", auth.TypeAdmin, auth.RoleSuper, auth.StatusAccepted)

	resp := api.post("/v1/auth/login", map[string]any{
		"email":    "admin@gmail.com",
		"password": "pass-123",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status: %d", resp.StatusCode)
	}
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" || !cookie.HttpOnly {
		t.Fatalf("expected HttpOnly session cookie, got %+v", cookie)
	}
	payload := decode[loginResponse](t, resp)
	if payload.User == nil || payload.User.Email != "admin@gmail.com" {
		t.Fatalf("unexpected user in response: %+v", payload.User)
	}
	if payload.User.PasswordHash != "" {
		t.Fatal("password hash leaked in response")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("admin@gmail.com", "pass-123", auth.TypeAdmin, auth.RoleSuper, auth.StatusAccepted)

	cases := map[string]map[string]any{
		"wrong password": {"email": "admin@gmail.com", "password": "nope"},
		"unknown email":  {"email": "ghost@gmail.com", "password": "pass-123"},
	}
	for name, body := range cases {
		resp := api.post("/v1/auth/login", body, nil)
		errBody := decode[map[string]any](t, resp)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, resp.StatusCode)
		}
		if errBody["error"] != "invalid email or password" {
			t.Fatalf("%s: expected uniform rejection message, got %v", name, errBody["error"])
		}
	}
}

func TestSignupVerifyApproveLoginFlow(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("admin@gmail.com", "admin-pass", auth.TypeAdmin, auth.RoleSuper, auth.StatusAccepted)

	// Request a code.
	resp := api.post("/v1/auth/otp", map[string]any{
		"action": "send",
		"email":  "newhire@gmail.com",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("otp send status: %d", resp.StatusCode)
	}
	resp.Body.Close()
	if api.mailer.sent != 1 {
		t.Fatalf("expected one mail dispatch, got %d", api.mailer.sent)
	}
	rec, ok, err := api.codeStore.Get(context.Background(), "newhire@gmail.com")
	if err != nil || !ok {
		t.Fatalf("expected stored code, ok=%v err=%v", ok, err)
	}

	// Sign up with the code: account lands in pending.
	resp = api.post("/v1/auth/signup", map[string]any{
		"name":     "New Hire",
		"email":    "newhire@gmail.com",
		"password": "hire-pass",
		"role":     "HR",
		"code":     rec.Code,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status: %d", resp.StatusCode)
	}
	created := decode[auth.User](t, resp)
	if created.Status != auth.StatusPending || created.Type != auth.TypeUser {
		t.Fatalf("unexpected new account: %+v", created)
	}

	// Pending accounts cannot sign in.
	resp = api.post("/v1/auth/login", map[string]any{
		"email":    "newhire@gmail.com",
		"password": "hire-pass",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("pending login: expected 401, got %d", resp.StatusCode)
	}

	// Admin approves.
	adminToken := api.login("admin@gmail.com", "admin-pass")
	resp = api.do(http.MethodPatch, "/v1/users/"+created.ID, map[string]any{
		"status": "accepted",
	}, bearerHeader(adminToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Now login works and /v1/me resolves the account.
	token := api.login("newhire@gmail.com", "hire-pass")
	resp = api.get("/v1/me", nil, bearerHeader(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status: %d", resp.StatusCode)
	}
	me := decode[auth.User](t, resp)
	if me.Email != "newhire@gmail.com" || me.Role != auth.RoleHR {
		t.Fatalf("unexpected me payload: %+v", me)
	}
}

func TestSignupRejectsWrongCode(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/otp", map[string]any{
		"action": "send",
		"email":  "newhire@gmail.com",
	}, nil)
	resp.Body.Close()

	resp = api.post("/v1/auth/signup", map[string]any{
		"name":     "New Hire",
		"email":    "newhire@gmail.com",
		"password": "hire-pass",
		"role":     "HR",
		"code":     "000000",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong code, got %d", resp.StatusCode)
	}
}

func TestOTPRejectsForeignDomain(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/otp", map[string]any{
		"action": "send",
		"email":  "someone@example.com",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if api.mailer.sent != 0 {
		t.Fatal("no mail should be sent for rejected domains")
	}
}

func TestUserDirectoryRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("admin@gmail.com", "admin-pass", auth.TypeAdmin, auth.RoleSuper, auth.StatusAccepted)
	api.seedUser("worker@gmail.com", "worker-pass", auth.TypeUser, auth.RoleHR, auth.StatusAccepted)

	// No token at all.
	resp := api.get("/v1/users", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	// Regular user token.
	workerToken := api.login("worker@gmail.com", "worker-pass")
	resp = api.get("/v1/users", nil, bearerHeader(workerToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	// Admin token.
	adminToken := api.login("admin@gmail.com", "admin-pass")
	resp = api.get("/v1/users", nil, bearerHeader(adminToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	listing := decode[map[string]any](t, resp)
	if listing["count"].(float64) != 2 {
		t.Fatalf("unexpected user count: %v", listing["count"])
	}
}

func TestUserDeleteByAdmin(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("admin@gmail.com", "admin-pass", auth.TypeAdmin, auth.RoleSuper, auth.StatusAccepted)
	target := api.seedUser("worker@gmail.com", "worker-pass", auth.TypeUser, auth.RoleSales, auth.StatusAccepted)

	adminToken := api.login("admin@gmail.com", "admin-pass")
	resp := api.do(http.MethodDelete, "/v1/users/"+target.ID, nil, bearerHeader(adminToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp = api.get("/v1/users/"+target.ID, nil, bearerHeader(adminToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestRFPLifecycleAndSummary(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("owner@gmail.com", "owner-pass", auth.TypeUser, auth.RoleFinance, auth.StatusAccepted)
	token := api.login("owner@gmail.com", "owner-pass")
	header := bearerHeader(token)

	resp := api.post("/v1/rfps", map[string]any{
		"title":      "ERP migration",
		"client":     "Globex",
		"department": "Finance",
		"value":      500000,
	}, header)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc == "" {
		t.Fatal("expected Location header")
	}
	created := decode[rfp.RFP](t, resp)
	if created.Status != rfp.StatusDraft || created.OwnerID == "" {
		t.Fatalf("unexpected created rfp: %+v", created)
	}

	resp = api.do(http.MethodPatch, "/v1/rfps/"+created.ID, map[string]any{
		"status": "won",
	}, header)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status: %d", resp.StatusCode)
	}
	updated := decode[rfp.RFP](t, resp)
	if updated.Status != rfp.StatusWon {
		t.Fatalf("unexpected status after update: %q", updated.Status)
	}

	resp = api.get("/v1/rfps", url.Values{"department": []string{"Finance"}}, header)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status: %d", resp.StatusCode)
	}
	listing := decode[map[string]any](t, resp)
	if listing["count"].(float64) != 1 {
		t.Fatalf("unexpected rfp count: %v", listing["count"])
	}

	resp = api.get("/v1/dashboard/summary", nil, header)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary status: %d", resp.StatusCode)
	}
	sum := decode[rfp.Summary](t, resp)
	if sum.TotalCount != 1 || sum.ByStatus[rfp.StatusWon] != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	resp = api.do(http.MethodDelete, "/v1/rfps/"+created.ID, nil, header)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status: %d", resp.StatusCode)
	}
}

func TestRFPListRejectsBadFilter(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("owner@gmail.com", "owner-pass", auth.TypeUser, auth.RoleFinance, auth.StatusAccepted)
	token := api.login("owner@gmail.com", "owner-pass")

	resp := api.get("/v1/rfps", url.Values{"department": []string{"Engineering"}}, bearerHeader(token))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
