package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	httpH "github.com/yungbote/intromatch-backend/internal/http/handlers"
	httpMW "github.com/yungbote/intromatch-backend/internal/http/middleware"
	"github.com/yungbote/intromatch-backend/internal/modules/maintenance"
	"github.com/yungbote/intromatch-backend/internal/modules/matching"
	"github.com/yungbote/intromatch-backend/internal/modules/onboarding"
	"github.com/yungbote/intromatch-backend/internal/modules/users"
	"github.com/yungbote/intromatch-backend/internal/modules/validation"
	"github.com/yungbote/intromatch-backend/internal/platform/gcp"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

const (
	testSecret     = "test-secret"
	testAdminToken = "admin-token"
)

type fakeOnboarding struct {
	session    *types.OnboardingSession
	processErr error
	lastInit   onboarding.InitiateInput
	lastKey    string
}

func (f *fakeOnboarding) Initiate(_ context.Context, in onboarding.InitiateInput) (*onboarding.InitiateResult, error) {
	f.lastInit = in
	return &onboarding.InitiateResult{
		Session: f.session,
		Context: "initial",
		Upload:  &gcp.UploadTarget{URL: "https://upload.example/x", Method: "PUT", StorageKey: "onboarding/" + f.session.ID.String() + "/initial.wav"},
	}, nil
}

func (f *fakeOnboarding) RequestAdditionalUploadTarget(_ context.Context, id uuid.UUID, _ string) (*gcp.UploadTarget, error) {
	if id != f.session.ID {
		return nil, &types.SessionNotFoundError{SessionID: id.String()}
	}
	return &gcp.UploadTarget{URL: "https://upload.example/y", StorageKey: "onboarding/" + id.String() + "/initial-1.wav"}, nil
}

func (f *fakeOnboarding) ProcessAudio(_ context.Context, id uuid.UUID, key string) (*onboarding.ProcessResult, error) {
	f.lastKey = key
	if f.processErr != nil {
		return nil, f.processErr
	}
	s := *f.session
	s.Status = types.SessionNeedsClarification
	return &onboarding.ProcessResult{Session: &s, Validation: validation.Result{Hints: []string{"What's your name?"}, CompletenessScore: 0.5}}, nil
}

func (f *fakeOnboarding) OnboardFromText(context.Context, onboarding.OnboardTextInput) (*onboarding.ProcessResult, error) {
	s := *f.session
	s.Status = types.SessionCompleted
	return &onboarding.ProcessResult{Session: &s, Validation: validation.Result{IsComplete: true, CompletenessScore: 1}}, nil
}

func (f *fakeOnboarding) GetSession(_ context.Context, id uuid.UUID) (*types.OnboardingSession, error) {
	if id != f.session.ID {
		return nil, &types.SessionNotFoundError{SessionID: id.String()}
	}
	return f.session, nil
}

func (f *fakeOnboarding) FindLatestSession(context.Context, uuid.UUID, *uuid.UUID) (*types.OnboardingSession, error) {
	return f.session, nil
}

func (f *fakeOnboarding) BaseGuidance() validation.Result {
	return validation.Result{Hints: []string{"What's your name?", "What do you do?"}}
}

type fakeUsers struct {
	user *types.User
}

func (f *fakeUsers) Resolve(_ context.Context, sub string) (*types.User, error) {
	if f.user == nil || f.user.ExternalID == nil || *f.user.ExternalID != sub {
		return nil, &types.NotFoundError{Entity: "user", ID: sub}
	}
	return f.user, nil
}

func (f *fakeUsers) GetMe(ctx context.Context, sub string) (*users.Me, error) {
	u, err := f.Resolve(ctx, sub)
	if err != nil {
		return nil, err
	}
	return &users.Me{User: u}, nil
}

func (f *fakeUsers) ListMyEvents(context.Context, string) ([]users.JoinedEvent, error) {
	return []users.JoinedEvent{}, nil
}

func (f *fakeUsers) GetEvent(_ context.Context, id uuid.UUID) (*types.Event, error) {
	return nil, &types.NotFoundError{Entity: "event", ID: id.String()}
}

type fakeMatches struct {
	err   error
	gotK  int
	out   []matching.Match
	calls int
}

func (f *fakeMatches) FindTopMatches(_ context.Context, _ uuid.UUID, k int) ([]matching.Match, error) {
	f.calls++
	f.gotK = k
	return f.out, f.err
}

type fakeMaintenance struct{ reindexed int }

func (f *fakeMaintenance) ReindexAll(context.Context) (maintenance.ReindexReport, error) {
	f.reindexed++
	return maintenance.ReindexReport{Total: 10, Succeeded: 8, Skipped: 2}, nil
}

func (f *fakeMaintenance) ResyncStale(context.Context) (maintenance.ReindexReport, error) {
	return maintenance.ReindexReport{}, nil
}

func (f *fakeMaintenance) Cleanup(context.Context) (maintenance.CleanupReport, error) {
	return maintenance.CleanupReport{Tables: []string{"user"}, VectorsReset: true}, nil
}

type testServer struct {
	engine  *gin.Engine
	ob      *fakeOnboarding
	users   *fakeUsers
	matches *fakeMatches
	maint   *fakeMaintenance
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	ext := "auth0|alex"
	ts := &testServer{
		ob:      &fakeOnboarding{session: &types.OnboardingSession{ID: uuid.New(), UserID: uuid.New(), Status: types.SessionAwaitingAudio}},
		users:   &fakeUsers{user: &types.User{ID: uuid.New(), ExternalID: &ext}},
		matches: &fakeMatches{out: []matching.Match{{Name: "Blair", Reason: "similarity score: 0.90", Score: 0.9}}},
		maint:   &fakeMaintenance{},
	}
	ts.engine = NewRouter(RouterConfig{
		Log:               log,
		AuthMiddleware:    httpMW.NewAuthMiddleware(log, testSecret),
		AdminToken:        testAdminToken,
		HealthHandler:     httpH.NewHealthHandler(nil),
		OnboardingHandler: httpH.NewOnboardingHandler(log, ts.ob, ts.users),
		UserHandler:       httpH.NewUserHandler(ts.users),
		MatchHandler:      httpH.NewMatchHandler(log, ts.users, ts.matches),
		AdminHandler:      httpH.NewAdminHandler(log, ts.maint),
	})
	return ts
}

func signToken(t *testing.T, secret, sub string, ttl time.Duration) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func (ts *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env, _ := decode(t, rec)["error"].(map[string]any)
	code, _ := env["code"].(string)
	return code
}

func TestHealthcheck(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/healthcheck", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: code=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestInitiateAnonymousAndAuthenticated(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/onboarding/initiate", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("anonymous: want=201 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if ts.ob.lastInit.ExternalUserID != "" {
		t.Fatalf("anonymous subject: got=%q", ts.ob.lastInit.ExternalUserID)
	}
	body := decode(t, rec)
	if body["onboarding_id"] != ts.ob.session.ID.String() || body["upload_url"] == "" {
		t.Fatalf("body: %v", body)
	}

	tok := signToken(t, testSecret, "auth0|alex", time.Hour)
	evID := uuid.New()
	rec = ts.do(http.MethodPost, "/api/onboarding/initiate", `{"event_id":"`+evID.String()+`","initial_context":"goals"}`,
		map[string]string{"Authorization": "Bearer " + tok})
	if rec.Code != http.StatusCreated {
		t.Fatalf("authenticated: want=201 got=%d", rec.Code)
	}
	if ts.ob.lastInit.ExternalUserID != "auth0|alex" || ts.ob.lastInit.EventID == nil || *ts.ob.lastInit.EventID != evID {
		t.Fatalf("input: %+v", ts.ob.lastInit)
	}
}

func TestInitiateRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/onboarding/initiate", `{"event_id":"nope"}`, nil)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "validation_failed" {
		t.Fatalf("bad event id: code=%d body=%s", rec.Code, rec.Body.String())
	}
	bad := signToken(t, "other-secret", "auth0|alex", time.Hour)
	rec = ts.do(http.MethodPost, "/api/onboarding/initiate", "", map[string]string{"Authorization": "Bearer " + bad})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: want=401 got=%d", rec.Code)
	}
}

func TestNotifyUpload(t *testing.T) {
	ts := newTestServer(t)
	path := "/api/onboarding/" + ts.ob.session.ID.String() + "/notify-upload"

	rec := ts.do(http.MethodPost, path, `{}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing key: want=400 got=%d", rec.Code)
	}

	rec = ts.do(http.MethodPost, path, `{"storage_key":"onboarding/k.wav"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("notify: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["status"] != string(types.SessionNeedsClarification) || body["is_complete"] != false {
		t.Fatalf("body: %v", body)
	}
	if hints, _ := body["hints"].([]any); len(hints) != 1 {
		t.Fatalf("hints: %v", body["hints"])
	}
	if ts.ob.lastKey != "onboarding/k.wav" {
		t.Fatalf("key: %q", ts.ob.lastKey)
	}

	ts.ob.processErr = &types.TranscriptionFailedError{JobID: "op", Reason: "no speech recognized"}
	rec = ts.do(http.MethodPost, path, `{"storage_key":"onboarding/k.wav"}`, nil)
	if rec.Code != http.StatusBadGateway || errorCode(t, rec) != "external_service_failure" {
		t.Fatalf("failed transcription: code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestGetSessionNotFound(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/api/onboarding/"+uuid.NewString(), "", nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "not_found" {
		t.Fatalf("code=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = ts.do(http.MethodGet, "/api/onboarding/not-a-uuid", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: want=400 got=%d", rec.Code)
	}
}

func TestGuidanceIsPublic(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/api/onboarding/guidance", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want=200 got=%d", rec.Code)
	}
	body := decode(t, rec)
	if hints, _ := body["hints"].([]any); len(hints) != 2 || body["is_complete"] != false {
		t.Fatalf("body: %v", body)
	}
}

func TestMatchesRequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/api/matches", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: want=401 got=%d", rec.Code)
	}
	expired := signToken(t, testSecret, "auth0|alex", -time.Minute)
	rec = ts.do(http.MethodGet, "/api/matches", "", map[string]string{"Authorization": "Bearer " + expired})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: want=401 got=%d", rec.Code)
	}
}

func TestMatches(t *testing.T) {
	ts := newTestServer(t)
	auth := map[string]string{"Authorization": "Bearer " + signToken(t, testSecret, "auth0|alex", time.Hour)}

	rec := ts.do(http.MethodGet, "/api/matches?limit=3", "", auth)
	if rec.Code != http.StatusOK || ts.matches.gotK != 3 {
		t.Fatalf("code=%d k=%d", rec.Code, ts.matches.gotK)
	}
	if m, _ := decode(t, rec)["matches"].([]any); len(m) != 1 {
		t.Fatalf("matches: %s", rec.Body.String())
	}

	rec = ts.do(http.MethodGet, "/api/matches?limit=0", "", auth)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("limit=0: want=400 got=%d", rec.Code)
	}

	ts.matches.err = &types.LLMExtractionFailedError{Reason: "index down"}
	rec = ts.do(http.MethodGet, "/api/matches", "", auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded: want=200 got=%d", rec.Code)
	}
	if m, ok := decode(t, rec)["matches"].([]any); !ok || len(m) != 0 {
		t.Fatalf("degraded matches: %s", rec.Body.String())
	}
}

func TestMatchesForUnknownUserIsEmpty(t *testing.T) {
	ts := newTestServer(t)
	auth := map[string]string{"Authorization": "Bearer " + signToken(t, testSecret, "auth0|stranger", time.Hour)}
	rec := ts.do(http.MethodGet, "/api/matches", "", auth)
	if rec.Code != http.StatusOK || ts.matches.calls != 0 {
		t.Fatalf("code=%d calls=%d", rec.Code, ts.matches.calls)
	}
}

func TestUsersMe(t *testing.T) {
	ts := newTestServer(t)
	auth := map[string]string{"Authorization": "Bearer " + signToken(t, testSecret, "auth0|alex", time.Hour)}
	rec := ts.do(http.MethodGet, "/api/users/me", "", auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("want=200 got=%d", rec.Code)
	}
	rec = ts.do(http.MethodGet, "/api/events/"+uuid.NewString(), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("event: want=404 got=%d", rec.Code)
	}
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/admin/reindex-all", "", nil)
	if rec.Code != http.StatusUnauthorized || ts.maint.reindexed != 0 {
		t.Fatalf("no token: code=%d reindexed=%d", rec.Code, ts.maint.reindexed)
	}
	rec = ts.do(http.MethodPost, "/api/admin/reindex-all", "", map[string]string{"X-Admin-Token": testAdminToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("want=200 got=%d", rec.Code)
	}
	body := decode(t, rec)
	if body["succeeded"] != float64(8) || body["skipped"] != float64(2) {
		t.Fatalf("report: %v", body)
	}
	rec = ts.do(http.MethodPost, "/api/dev/onboard-from-text", `{"text":"I'm Alex"}`, map[string]string{"X-Admin-Token": testAdminToken})
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != string(types.SessionCompleted) {
		t.Fatalf("onboard-from-text: code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/x", httpMW.RequireAdmin(""), func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("X-Admin-Token", "")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("want=403 got=%d", rec.Code)
	}
}
