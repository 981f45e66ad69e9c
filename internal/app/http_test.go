package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"visaprep/api/internal/store"
)

func doJSON(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBufferString("{}")
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func parseBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response %q: %v", rr.Body.String(), err)
	}
	return payload
}

func TestProtectedRouteWithoutBearerReturnsUnauthorized(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore()), "*")
	rr := doJSON(t, server.Handler(), http.MethodGet, "/api/form", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	if parseBody(t, rr)["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED code")
	}
}

func TestProtectedRouteWithInvalidBearerReturnsUnauthorized(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore()), "*")
	rr := doJSON(t, server.Handler(), http.MethodGet, "/api/form", "definitely-not-a-token", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSchemaIsPublic(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore()), "*")
	rr := doJSON(t, server.Handler(), http.MethodGet, "/api/schema", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	payload := parseBody(t, rr)
	sections, ok := payload["sections"].([]any)
	if !ok || len(sections) == 0 {
		t.Fatal("expected schema sections")
	}
	countries, ok := payload["countries"].([]any)
	if !ok || len(countries) == 0 {
		t.Fatal("expected country reference data")
	}
}

func TestAnonymousSignInAndFormFlow(t *testing.T) {
	fs := newFakeStore()
	server := NewHTTPServer(newTestService(fs), "*")
	handler := server.Handler()

	rr := doJSON(t, handler, http.MethodPost, "/api/auth/signin/anonymous", "", `{"displayName":"Amara"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("anonymous signin: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	auth := parseBody(t, rr)
	token, _ := auth["accessToken"].(string)
	if token == "" {
		t.Fatal("expected an access token")
	}
	if auth["isAnonymous"] != true {
		t.Error("expected isAnonymous true")
	}

	rr = doJSON(t, handler, http.MethodPost, "/api/form/open?fresh", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("open: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	opened := parseBody(t, rr)
	if opened["mode"] != "fresh" {
		t.Errorf("expected fresh mode, got %v", opened["mode"])
	}
	if opened["state"] != "ready" {
		t.Errorf("expected ready state, got %v", opened["state"])
	}

	rr = doJSON(t, handler, http.MethodPost, "/api/form/edit", token, `{"field":"surname","value":"OKAFOR"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("edit: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodPost, "/api/form/save", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("save: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	saved := parseBody(t, rr)
	canonicalID, _ := saved["canonicalId"].(string)
	if canonicalID == "" {
		t.Fatal("expected a canonical record id after save")
	}
	if fs.submissionCount() != 1 {
		t.Fatalf("expected one stored submission, got %d", fs.submissionCount())
	}

	rr = doJSON(t, handler, http.MethodGet, "/api/form/summary", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", rr.Code)
	}
	stats, _ := parseBody(t, rr)["stats"].(map[string]any)
	if stats["filled"] != float64(1) {
		t.Errorf("expected one filled field, got %v", stats["filled"])
	}
}

func TestEditUnknownFieldRejected(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	handler := server.Handler()

	session, err := svc.SignInAnonymous(context.Background(), "")
	if err != nil {
		t.Fatalf("SignInAnonymous: %v", err)
	}

	rr := doJSON(t, handler, http.MethodPost, "/api/form/edit", session.Token, `{"field":"no-such-field","value":"x"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	if parseBody(t, rr)["code"] != "VALIDATION_ERROR" {
		t.Error("expected VALIDATION_ERROR code")
	}
}

func TestExportJSONDownload(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	handler := server.Handler()

	session, err := svc.SignInAnonymous(context.Background(), "Amara")
	if err != nil {
		t.Fatalf("SignInAnonymous: %v", err)
	}
	doJSON(t, handler, http.MethodPost, "/api/form/open?fresh", session.Token, "")
	doJSON(t, handler, http.MethodPost, "/api/form/edit", session.Token, `{"field":"surname","value":"OKAFOR"}`)

	rr := doJSON(t, handler, http.MethodGet, "/api/form/export?format=json", session.Token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if disposition := rr.Header().Get("Content-Disposition"); !strings.Contains(disposition, "attachment") {
		t.Errorf("expected attachment disposition, got %q", disposition)
	}
	var exported map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &exported); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if exported["surname"] != "OKAFOR" {
		t.Errorf("expected exported surname, got %v", exported["surname"])
	}
}

func TestExportUnknownFormatRejected(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	session, err := svc.SignInAnonymous(context.Background(), "")
	if err != nil {
		t.Fatalf("SignInAnonymous: %v", err)
	}
	rr := doJSON(t, server.Handler(), http.MethodGet, "/api/form/export?format=docx", session.Token, "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSignUpVerifySignInFlow(t *testing.T) {
	fs := newFakeStore()
	server := NewHTTPServer(newTestService(fs), "*")
	handler := server.Handler()

	rr := doJSON(t, handler, http.MethodPost, "/api/auth/signup", "", `{"email":"amara@example.com","password":"long-enough-pw","displayName":"Amara"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	verificationToken, _ := parseBody(t, rr)["devVerificationToken"].(string)
	if verificationToken == "" {
		t.Fatal("expected dev verification token when SMTP is unconfigured")
	}

	rr = doJSON(t, handler, http.MethodPost, "/api/auth/signin", "", `{"email":"amara@example.com","password":"long-enough-pw"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("pre-verify signin: expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodPost, "/api/auth/verify-email", "", `{"token":"`+verificationToken+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodPost, "/api/auth/signin", "", `{"email":"amara@example.com","password":"long-enough-pw"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("signin: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := parseBody(t, rr)
	if payload["accessToken"] == "" || payload["refreshToken"] == "" {
		t.Fatal("expected session tokens")
	}
	if payload["isAdmin"] != false {
		t.Errorf("unlisted user must not be admin, got %v", payload["isAdmin"])
	}
}

func TestAdminRouteRejectsRegularUser(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	ctx := context.Background()

	seedUser(fs, store.User{ID: "u1", Email: "user@example.com", DisplayName: "User", IsEmailVerified: true})
	session, err := svc.CreateSession(ctx, "u1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	rr := doJSON(t, server.Handler(), http.MethodGet, "/api/admin/submissions", session.Token, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	if fs.listAllCallCount() != 0 {
		t.Error("store must not be queried for a forbidden admin call")
	}
}

func TestAdminListAndDelete(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	handler := server.Handler()
	ctx := context.Background()

	seedUser(fs, store.User{ID: "adm", Email: "admin@example.com", DisplayName: "Admin", IsEmailVerified: true})
	session, err := svc.CreateSession(ctx, "adm")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	fs.submissions["sub-1"] = store.Submission{ID: "sub-1", OwnerID: "u1", OwnerEmail: "amara@example.com"}

	rr := doJSON(t, handler, http.MethodGet, "/api/admin/submissions", session.Token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	items, _ := parseBody(t, rr)["submissions"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one submission, got %d", len(items))
	}

	rr = doJSON(t, handler, http.MethodDelete, "/api/admin/submissions/sub-1", session.Token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if fs.submissionCount() != 0 {
		t.Error("expected submission to be deleted")
	}

	rr = doJSON(t, handler, http.MethodDelete, "/api/admin/submissions/sub-1", session.Token, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("repeat delete: expected 404, got %d", rr.Code)
	}
}

func TestAdminExportDownload(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	handler := server.Handler()
	ctx := context.Background()

	seedUser(fs, store.User{ID: "adm", Email: "admin@example.com", DisplayName: "Admin", IsEmailVerified: true})
	session, err := svc.CreateSession(ctx, "adm")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	fs.submissions["sub-1"] = store.Submission{ID: "sub-1", OwnerID: "u1", OwnerEmail: "amara@example.com"}

	rr := doJSON(t, handler, http.MethodGet, "/api/admin/export", session.Token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, "submissions-export.json") {
		t.Errorf("Content-Disposition = %q", got)
	}
	bundle := parseBody(t, rr)
	items, _ := bundle["submissions"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one submission in the bundle, got %d", len(items))
	}
}

func TestAdminStatsEndpoint(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	ctx := context.Background()

	seedUser(fs, store.User{ID: "adm", Email: "admin@example.com", DisplayName: "Admin", IsEmailVerified: true})
	session, err := svc.CreateSession(ctx, "adm")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	fs.submissions["sub-1"] = store.Submission{ID: "sub-1", OwnerID: "u1"}

	rr := doJSON(t, server.Handler(), http.MethodGet, "/api/admin/stats", session.Token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if parseBody(t, rr)["total"] != float64(1) {
		t.Errorf("expected total 1, got %v", parseBody(t, rr)["total"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore()), "*")
	rr := doJSON(t, server.Handler(), http.MethodGet, "/api/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if parseBody(t, rr)["ok"] != true {
		t.Error("expected ok true")
	}
}
