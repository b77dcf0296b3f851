package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/impact-hub/partner-portal/internal/application/command"
	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/application/query"
	"github.com/impact-hub/partner-portal/internal/domain/contribution"
	"github.com/impact-hub/partner-portal/internal/domain/rank"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/internal/infrastructure/auth"
	"github.com/impact-hub/partner-portal/internal/infrastructure/persistence/memory"
	"github.com/impact-hub/partner-portal/internal/interface/http/handlers"
	"github.com/impact-hub/partner-portal/pkg/logger"
)

type fakeProofs struct {
	mu   sync.Mutex
	keys map[string]string
}

func (f *fakeProofs) Upload(_ context.Context, key string, p contribution.Proof) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[key] = p.ContentType
	return nil
}

func (f *fakeProofs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	return nil
}

func (f *fakeProofs) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://proofs.example.com/" + key + "?sig=abc", nil
}

type testAPI struct {
	t      *testing.T
	server *httptest.Server
	proofs *fakeProofs
}

func newTestAPI(t *testing.T, checker handlers.HealthChecker) *testAPI {
	t.Helper()

	store := memory.NewStore()
	ranks := rank.DefaultTable()
	now := shared.SystemClock
	newID := port.IDGenerator(uuid.NewString)
	features := port.FeaturesFunc(func(string) bool { return true })
	log := logger.Nop()

	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: "test-secret-test-secret", TTL: time.Hour}, nil)
	require.NoError(t, err)
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	proofs := &fakeProofs{keys: map[string]string{}}

	srv := NewServer(Config{RateLimitPerMinute: 0}, Dependencies{
		SignUp:        command.NewSignUpHandler(store, hasher, tokens, ranks, []string{"admin@example.com"}, nil, newID, now),
		SignIn:        command.NewSignInHandler(store, hasher, tokens),
		UpdateProfile: command.NewUpdateProfileHandler(store, now),
		Submit:        command.NewSubmitContributionHandler(store, proofs, nil, newID, now),
		Approve:       command.NewApproveContributionHandler(store, ranks, features, nil, newID, now),
		Reject:        command.NewRejectContributionHandler(store, nil, newID, now),
		MarkRead:      command.NewMarkReadHandler(store),
		Leaderboard:   query.NewGetLeaderboardHandler(store, nil, features, query.DefaultLeaderboardConfig(), log, now),
		Partners:      query.NewPartnerHandler(store, ranks, now),
		Contributions: query.NewContributionsHandler(store, proofs),
		Inbox:         query.NewInboxHandler(store),
		Tokens:        tokens,
		HealthChecker: checker,
		Logger:        log,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testAPI{t: t, server: ts, proofs: proofs}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *ResponseMeta   `json:"meta"`
}

func (a *testAPI) do(method, path, token string, body any) (*http.Response, envelope) {
	a.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, a.server.URL+path, rdr)
	require.NoError(a.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, token)
}

func (a *testAPI) send(req *http.Request, token string) (*http.Response, envelope) {
	a.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func (a *testAPI) signUp(email string) (token, userID string) {
	a.t.Helper()
	resp, env := a.do(http.MethodPost, "/api/v1/auth/sign-up", "", map[string]string{
		"email": email, "password": "long-enough-pw", "full_name": "Test " + email,
	})
	require.Equal(a.t, http.StatusCreated, resp.StatusCode, "%+v", env.Error)

	var res struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &res))
	return res.Token, res.User.ID
}

func today() string { return time.Now().UTC().Format(dateLayout) }

func TestAPI_HealthEndpoints(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("postgres", func(context.Context) error { return nil }, true)
	checker.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") }, false)
	api := newTestAPI(t, checker)

	resp, _ := api.do(http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.True(t, status.Ready)
	assert.False(t, status.Checks["redis"].Healthy)

	resp, _ = api.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, env = api.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestAPI_Authentication(t *testing.T) {
	api := newTestAPI(t, nil)
	api.signUp("ana@example.com")

	resp, env := api.do(http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", env.Error.Code)

	resp, _ = api.do(http.MethodGet, "/api/v1/me", "forged.token.value", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env = api.do(http.MethodPost, "/api/v1/auth/sign-in", "", map[string]string{
		"email": "ana@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid email or password", env.Error.Message)

	resp, _ = api.do(http.MethodPost, "/api/v1/auth/sign-up", "", map[string]string{
		"email": "ANA@example.com", "password": "long-enough-pw", "full_name": "Again",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, env = api.do(http.MethodPost, "/api/v1/auth/sign-in", "", map[string]string{
		"email": "ana@example.com", "password": "long-enough-pw",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))

	resp, env = api.do(http.MethodGet, "/api/v1/me", res.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), `"impact_score":0`)
	assert.Contains(t, resp.Header.Get("Cache-Control"), "no-store")
}

func TestAPI_ContributionLifecycle(t *testing.T) {
	api := newTestAPI(t, nil)
	adminToken, _ := api.signUp("admin@example.com")
	partnerToken, partnerID := api.signUp("partner@example.com")

	// submit
	resp, env := api.do(http.MethodPost, "/api/v1/contributions", partnerToken, map[string]any{
		"amount": "1250.50", "contribution_date": today(), "payment_method": "bank_transfer",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "%+v", env.Error)
	var c struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &c))
	assert.Equal(t, "pending", c.Status)

	// the admin got a "contribution" notification
	resp, env = api.do(http.MethodGet, "/api/v1/notifications", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), `"type":"contribution"`)
	assert.Contains(t, string(env.Data), `"unread_count":1`)

	// partners cannot approve
	resp, env = api.do(http.MethodPost, "/api/v1/contributions/"+c.ID+"/approve", partnerToken, map[string]string{"amount": "1250.50"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", env.Error.Code)

	// amount mismatch is a validation error
	resp, env = api.do(http.MethodPost, "/api/v1/contributions/"+c.ID+"/approve", adminToken, map[string]string{"amount": "99"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", env.Error.Code)

	// approve
	resp, env = api.do(http.MethodPost, "/api/v1/contributions/"+c.ID+"/approve", adminToken, map[string]string{"amount": "1250.50"})
	require.Equal(t, http.StatusOK, resp.StatusCode, "%+v", env.Error)
	var approved approveResponse
	require.NoError(t, json.Unmarshal(env.Data, &approved))
	assert.Equal(t, int64(12), approved.PointsAwarded)
	assert.Equal(t, rank.Name("bronze"), approved.Rank)

	// approving again conflicts
	resp, env = api.do(http.MethodPost, "/api/v1/contributions/"+c.ID+"/approve", adminToken, map[string]string{"amount": "1250.50"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, []string{"invalid_state", "already_processed"}, env.Error.Code)

	// rejecting a processed contribution conflicts too
	resp, _ = api.do(http.MethodPost, "/api/v1/contributions/"+c.ID+"/reject", adminToken, map[string]string{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// leaderboard
	resp, env = api.do(http.MethodGet, "/api/v1/leaderboard/all_time", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), `"partner_id":"`+partnerID+`"`)
	assert.Contains(t, resp.Header.Get("Cache-Control"), "public")

	resp, env = api.do(http.MethodGet, "/api/v1/leaderboard/all_time/partners/"+partnerID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), `"position":1`)

	resp, env = api.do(http.MethodGet, "/api/v1/leaderboard/yearly", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// partner notifications: approval, then mark all read twice
	resp, env = api.do(http.MethodGet, "/api/v1/notifications", partnerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), `"type":"approval"`)

	resp, env = api.do(http.MethodPost, "/api/v1/notifications/read-all", partnerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"updated":1}`, string(env.Data))

	resp, env = api.do(http.MethodPost, "/api/v1/notifications/read-all", partnerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"updated":0}`, string(env.Data))

	resp, _ = api.do(http.MethodPost, "/api/v1/notifications/"+uuid.NewString()+"/read", partnerToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// dashboard
	resp, env = api.do(http.MethodGet, "/api/v1/me/dashboard", partnerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), `"contributed_this_month":true`)
}

func TestAPI_SubmitValidation(t *testing.T) {
	api := newTestAPI(t, nil)
	token, _ := api.signUp("val@example.com")

	tomorrow := time.Now().UTC().AddDate(0, 0, 2).Format(dateLayout)
	cases := map[string]map[string]any{
		"zero amount":   {"amount": "0", "contribution_date": today()},
		"future date":   {"amount": "10", "contribution_date": tomorrow},
		"bad date":      {"amount": "10", "contribution_date": "18/03/2026"},
		"unknown field": {"amount": "10", "contribution_date": today(), "extra": true},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp, env := api.do(http.MethodPost, "/api/v1/contributions", token, body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "validation_error", env.Error.Code)
		})
	}
}

func TestAPI_MultipartProofUpload(t *testing.T) {
	api := newTestAPI(t, nil)
	token, partnerID := api.signUp("proof@example.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("amount", "300"))
	require.NoError(t, mw.WriteField("contribution_date", today()))
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="proof"; filename="receipt.png"`)
	h.Set("Content-Type", "application/octet-stream")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, api.server.URL+"/api/v1/contributions", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, env := api.send(req, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "%+v", env.Error)

	var c struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &c))

	require.Len(t, api.proofs.keys, 1)
	for key, contentType := range api.proofs.keys {
		assert.Equal(t, "image/png", contentType)
		assert.Regexp(t, fmt.Sprintf(`^%s/\d+\.png$`, partnerID), key)
	}

	resp, env = api.do(http.MethodGet, "/api/v1/contributions/"+c.ID+"/proof", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "%+v", env.Error)
	assert.Contains(t, string(env.Data), "https://proofs.example.com/")
	assert.Contains(t, string(env.Data), `"expires_in":900`)

	other, _ := api.signUp("other@example.com")
	resp, _ = api.do(http.MethodGet, "/api/v1/contributions/"+c.ID+"/proof", other, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{shared.ErrInvalidAmount, http.StatusBadRequest, "validation_error"},
		{shared.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
		{shared.ErrAdminRequired, http.StatusForbidden, "forbidden"},
		{shared.ErrContributionNotFound, http.StatusNotFound, "not_found"},
		{shared.ErrContributionNotPending, http.StatusConflict, "invalid_state"},
		{fmt.Errorf("approve: %w", shared.ErrContributionAlreadyProcessed), http.StatusConflict, "already_processed"},
		{shared.ErrEmailTaken, http.StatusConflict, "conflict"},
		{shared.Transient("postgres", "op", errors.New("conn reset")), http.StatusServiceUnavailable, "temporarily_unavailable"},
		{handlers.ErrBodyTooLarge, http.StatusRequestEntityTooLarge, "payload_too_large"},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, "payload_too_large"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, code := errorStatus(tc.err)
		assert.Equal(t, tc.status, status, "%v", tc.err)
		assert.Equal(t, tc.code, code, "%v", tc.err)
	}

	assert.Equal(t, "An unexpected error occurred", errorMessage(errors.New("secret dsn"), http.StatusInternalServerError))
}

func TestWriteError_TransientSetsRetryAfter(t *testing.T) {
	s := &Server{logger: logger.Nop()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	s.writeError(rec, req, shared.Transient("storage", "SignedURL", errors.New("timeout")))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, retryAfterSeconds, rec.Header().Get("Retry-After"))
}
