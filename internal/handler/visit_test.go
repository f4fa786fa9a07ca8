package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdosalm555/visit-pass/internal/config"
	"github.com/abdosalm555/visit-pass/internal/handler"
	"github.com/abdosalm555/visit-pass/internal/model"
	"github.com/abdosalm555/visit-pass/internal/repository"
	"github.com/abdosalm555/visit-pass/internal/router"
	"github.com/abdosalm555/visit-pass/internal/service"
	"github.com/abdosalm555/visit-pass/internal/utils"
)

const testJWTSecret = "test-secret"

// stubDetector always reports one confident identity document so handler
// tests can walk the full lifecycle without the external model.
type stubDetector struct{}

func (stubDetector) Detect(context.Context, io.Reader, string) ([]service.Detection, error) {
	return []service.Detection{{Label: "id_card", Confidence: 0.95}}, nil
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	cfg := config.Config{
		PublicBaseURL:   "http://gate.example.com",
		JWTSecret:       testJWTSecret,
		RequireIdentity: true,
	}

	store := repository.NewMemoryVisitStore()
	signer, err := service.NewSigner(service.SigningNone, "", "")
	require.NoError(t, err)

	auth := service.NewAuthenticator(store, signer)
	issuer := service.NewIssuer(store, signer)
	gate := service.NewIdentityGate(store, auth, stubDetector{}, 0)
	engine := service.NewConfirmationEngine(store, auth, cfg.RequireIdentity)

	e := echo.New()
	v := handler.NewVisitHandler(cfg, issuer, auth, gate, engine)
	router.RegisterRoutes(e)
	router.RegisterVisits(e, v, cfg.JWTSecret, nil)
	return e
}

func bearerFor(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testJWTSecret, 1, role, 15)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func doJSON(e *echo.Echo, method, path, body, bearer string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func issueVisit(t *testing.T, e *echo.Echo) map[string]any {
	t.Helper()
	rec := doJSON(e, http.MethodPost, "/v1/visits",
		`{"visitor_name":"Alice","host_name":"Bob","location":"Villa 7","purpose":"family visit","duration":"1 hour"}`,
		bearerFor(t, model.RoleHost))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["token"])
	return resp
}

func uploadIdentity(t *testing.T, e *echo.Echo, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("id_card", "id-front.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/visits/"+token+"/identity", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestVisitLifecycleEndToEnd(t *testing.T) {
	e := newTestServer(t)

	issued := issueVisit(t, e)
	token := issued["token"].(string)
	assert.Equal(t, "1h0m0s", issued["requested_duration"])
	assert.Equal(t, "http://gate.example.com/v1/visits/"+token, issued["redeem_url"])
	assert.Equal(t, false, issued["identity_verified"])

	// Visitor polls the public endpoint with the bare token.
	show := doJSON(e, http.MethodGet, "/v1/visits/"+token, "", "")
	require.Equal(t, http.StatusOK, show.Code)

	// The gate blocks confirmation until identity is verified.
	blocked := doJSON(e, http.MethodPost, "/v1/visits/"+token+"/confirm", "", bearerFor(t, model.RoleSecurity))
	assert.Equal(t, http.StatusPreconditionFailed, blocked.Code)

	up := uploadIdentity(t, e, token)
	require.Equal(t, http.StatusOK, up.Code, up.Body.String())
	var verified map[string]any
	require.NoError(t, json.Unmarshal(up.Body.Bytes(), &verified))
	assert.Equal(t, true, verified["identity_verified"])

	confirm := doJSON(e, http.MethodPost, "/v1/visits/"+token+"/confirm", "", bearerFor(t, model.RoleSecurity))
	require.Equal(t, http.StatusOK, confirm.Code, confirm.Body.String())
	var confirmed map[string]any
	require.NoError(t, json.Unmarshal(confirm.Body.Bytes(), &confirmed))
	assert.NotEmpty(t, confirmed["confirmed_at"])
	assert.InDelta(t, 3600, confirmed["remaining_stay_secs"], 5)

	// The same QR code scanned again must not grant a second entry.
	dup := doJSON(e, http.MethodPost, "/v1/visits/"+token+"/confirm", "", bearerFor(t, model.RoleSecurity))
	assert.Equal(t, http.StatusConflict, dup.Code)
}

func TestIssueRequiresHostRole(t *testing.T) {
	e := newTestServer(t)
	body := `{"visitor_name":"Alice","host_name":"Bob"}`

	noAuth := doJSON(e, http.MethodPost, "/v1/visits", body, "")
	assert.Equal(t, http.StatusUnauthorized, noAuth.Code)

	wrongRole := doJSON(e, http.MethodPost, "/v1/visits", body, bearerFor(t, model.RoleSecurity))
	assert.Equal(t, http.StatusForbidden, wrongRole.Code)

	admin := doJSON(e, http.MethodPost, "/v1/visits", body, bearerFor(t, model.RoleAdmin))
	assert.Equal(t, http.StatusCreated, admin.Code)
}

func TestConfirmRequiresSecurityRole(t *testing.T) {
	e := newTestServer(t)
	token := issueVisit(t, e)["token"].(string)

	asHost := doJSON(e, http.MethodPost, "/v1/visits/"+token+"/confirm", "", bearerFor(t, model.RoleHost))
	assert.Equal(t, http.StatusForbidden, asHost.Code)

	noAuth := doJSON(e, http.MethodPost, "/v1/visits/"+token+"/confirm", "", "")
	assert.Equal(t, http.StatusUnauthorized, noAuth.Code)
}

func TestIssueValidatesBody(t *testing.T) {
	e := newTestServer(t)

	missingVisitor := doJSON(e, http.MethodPost, "/v1/visits",
		`{"host_name":"Bob"}`, bearerFor(t, model.RoleHost))
	assert.Equal(t, http.StatusBadRequest, missingVisitor.Code)

	missingHost := doJSON(e, http.MethodPost, "/v1/visits",
		`{"visitor_name":"Alice"}`, bearerFor(t, model.RoleHost))
	assert.Equal(t, http.StatusBadRequest, missingHost.Code)
}

func TestIssueMalformedDurationFallsBackOverHTTP(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/v1/visits",
		`{"visitor_name":"Alice","host_name":"Bob","duration":"whenever"}`,
		bearerFor(t, model.RoleHost))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "30m0s", resp["requested_duration"])
}

func TestShowCountdownAgreesWithStayExpiry(t *testing.T) {
	cfg := config.Config{PublicBaseURL: "http://gate.example.com", JWTSecret: testJWTSecret}
	store := repository.NewMemoryVisitStore()
	signer, err := service.NewSigner(service.SigningNone, "", "")
	require.NoError(t, err)

	issuedAt := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	issuer := service.NewIssuer(store, signer)
	issuer.Now = func() time.Time { return issuedAt }
	auth := service.NewAuthenticator(store, signer)
	gate := service.NewIdentityGate(store, auth, stubDetector{}, 0)
	engine := service.NewConfirmationEngine(store, auth, false)

	setNow := func(now time.Time) {
		auth.Now = func() time.Time { return now }
		engine.Now = func() time.Time { return now }
	}

	setNow(issuedAt)
	rec, err := issuer.Issue(context.Background(), service.IssueRequest{
		VisitorName: "Alice", HostName: "Bob", Duration: "1 hour",
	})
	require.NoError(t, err)
	setNow(time.Date(2025, 3, 10, 9, 10, 0, 0, time.UTC))
	_, err = engine.Confirm(context.Background(), rec.Token, nil)
	require.NoError(t, err)

	e := echo.New()
	router.RegisterVisits(e, handler.NewVisitHandler(cfg, issuer, auth, gate, engine), cfg.JWTSecret, nil)

	// Mid-stay: countdown running, not expired.
	setNow(time.Date(2025, 3, 10, 9, 40, 0, 0, time.UTC))
	mid := doJSON(e, http.MethodGet, "/v1/visits/"+rec.Token, "", "")
	require.Equal(t, http.StatusOK, mid.Code)
	var midResp map[string]any
	require.NoError(t, json.Unmarshal(mid.Body.Bytes(), &midResp))
	assert.EqualValues(t, 1800, midResp["remaining_stay_secs"])
	assert.Equal(t, false, midResp["stay_expired"])

	// Past the stay: both fields flip together, on the same clock.
	setNow(time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC))
	late := doJSON(e, http.MethodGet, "/v1/visits/"+rec.Token, "", "")
	require.Equal(t, http.StatusOK, late.Code)
	var lateResp map[string]any
	require.NoError(t, json.Unmarshal(late.Body.Bytes(), &lateResp))
	assert.EqualValues(t, 0, lateResp["remaining_stay_secs"])
	assert.Equal(t, true, lateResp["stay_expired"])
}

func TestShowUnknownToken(t *testing.T) {
	e := newTestServer(t)
	rec := doJSON(e, http.MethodGet, "/v1/visits/ghost", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitIdentityRequiresFile(t *testing.T) {
	e := newTestServer(t)
	token := issueVisit(t, e)["token"].(string)

	rec := doJSON(e, http.MethodPost, "/v1/visits/"+token+"/identity", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	e := newTestServer(t)
	rec := doJSON(e, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
