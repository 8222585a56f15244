package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smith3v/mathquiz/pkg/config"
	"github.com/smith3v/mathquiz/pkg/internal/testutil"
	"github.com/smith3v/mathquiz/pkg/questions"
	"github.com/smith3v/mathquiz/pkg/statistics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	server *Server
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenTTL = "1h"
	s, err := NewServer(testutil.OpenTestDB(t), cfg)
	if err != nil {
		t.Fatalf("NewServer returned error: %v", err)
	}
	return &testServer{t: t, server: s, router: s.Router()}
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			ts.t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) expect(rec *httptest.ResponseRecorder, status int) {
	ts.t.Helper()
	if rec.Code != status {
		ts.t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func (ts *testServer) signupAndLogin(name, email, role string) string {
	ts.t.Helper()
	ts.expect(ts.do(http.MethodPost, "/api/signup", "", SignupRequest{
		Name: name, Email: email, Password: "Secret123", FocusArea: "Calculus", Role: role,
	}), http.StatusCreated)
	rec := ts.do(http.MethodPost, "/api/login", "", LoginRequest{Email: email, Password: "Secret123"})
	ts.expect(rec, http.StatusOK)
	return decode[LoginResponse](ts.t, rec).Token
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/healthz", "", nil)
	ts.expect(rec, http.StatusOK)
	if rec.Body.String() != "ok" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestSignupLoginAndMe(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signupAndLogin("Alice", "alice@example.com", "")

	rec := ts.do(http.MethodGet, "/api/me", token, nil)
	ts.expect(rec, http.StatusOK)
	body := decode[struct {
		Account struct {
			Name      string `json:"name"`
			Email     string `json:"email"`
			Role      string `json:"role"`
			FocusArea string `json:"focus_area"`
		} `json:"account"`
		FocusAreas []string `json:"focus_areas"`
	}](t, rec)
	if body.Account.Name != "Alice" || body.Account.FocusArea != "Calculus" || body.Account.Role != "student" {
		t.Fatalf("unexpected account: %+v", body.Account)
	}
	if len(body.FocusAreas) != 1 || body.FocusAreas[0] != "Calculus" {
		t.Fatalf("unexpected focus areas: %v", body.FocusAreas)
	}
}

func TestSignupErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.signupAndLogin("Alice", "alice@example.com", "")

	ts.expect(ts.do(http.MethodPost, "/api/signup", "", SignupRequest{
		Name: "Eve", Email: "alice@example.com", Password: "x",
	}), http.StatusConflict)
	ts.expect(ts.do(http.MethodPost, "/api/signup", "", SignupRequest{
		Name: "Eve", Email: "eve@example.com", Password: "x", Role: "admin",
	}), http.StatusBadRequest)
	ts.expect(ts.do(http.MethodPost, "/api/signup", "", map[string]string{"name": "Eve"}), http.StatusBadRequest)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	ts.signupAndLogin("Alice", "alice@example.com", "")

	ts.expect(ts.do(http.MethodPost, "/api/login", "", LoginRequest{
		Email: "alice@example.com", Password: "wrong",
	}), http.StatusUnauthorized)
	ts.expect(ts.do(http.MethodPost, "/api/login", "", LoginRequest{
		Email: "ghost@example.com", Password: "Secret123",
	}), http.StatusUnauthorized)
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signupAndLogin("Alice", "alice@example.com", "")

	ts.expect(ts.do(http.MethodGet, "/api/me", "", nil), http.StatusUnauthorized)
	ts.expect(ts.do(http.MethodGet, "/api/me", "not-a-jwt", nil), http.StatusUnauthorized)

	other, err := NewTokenIssuer("other-secret")
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	now := time.Now()
	forged, err := other.Issue(1, "whatever", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	ts.expect(ts.do(http.MethodGet, "/api/me", forged, nil), http.StatusUnauthorized)

	ts.expect(ts.do(http.MethodPost, "/api/logout", token, nil), http.StatusOK)
	ts.expect(ts.do(http.MethodGet, "/api/me", token, nil), http.StatusUnauthorized)
}

func TestStatsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signupAndLogin("Alice", "alice@example.com", "")

	ts.expect(ts.do(http.MethodPost, "/api/me/attempts", token, AttemptRequest{Correct: true}), http.StatusOK)
	rec := ts.do(http.MethodPost, "/api/me/attempts", token, AttemptRequest{Correct: false})
	ts.expect(rec, http.StatusOK)
	summary := decode[statistics.Summary](t, rec)
	if summary.Answered != 2 || summary.Accuracy != 0.5 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	for _, step := range []struct{ score, want int }{{50, 50}, {30, 50}, {80, 80}} {
		score := step.score
		rec := ts.do(http.MethodPost, "/api/me/highscore", token, HighScoreRequest{Score: &score})
		ts.expect(rec, http.StatusOK)
		if got := decode[HighScoreResponse](t, rec).HighScore; got != step.want {
			t.Fatalf("submitting %d gave high score %d, want %d", step.score, got, step.want)
		}
	}
	ts.expect(ts.do(http.MethodPost, "/api/me/highscore", token, map[string]any{}), http.StatusBadRequest)

	rec = ts.do(http.MethodGet, "/api/me/stats", token, nil)
	ts.expect(rec, http.StatusOK)
	if got := decode[statistics.Summary](t, rec); got.HighScore != 80 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestProfileUpdates(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signupAndLogin("Alice", "alice@example.com", "")
	ts.signupAndLogin("Bob", "bob@example.com", "")

	ts.expect(ts.do(http.MethodPatch, "/api/me/name", token, valueRequest{Value: "Alice Smith"}), http.StatusOK)
	ts.expect(ts.do(http.MethodPatch, "/api/me/email", token, valueRequest{Value: "bob@example.com"}), http.StatusConflict)
	ts.expect(ts.do(http.MethodPatch, "/api/me/password", token, valueRequest{Value: "N3wPass"}), http.StatusOK)
	ts.expect(ts.do(http.MethodPost, "/api/me/focus-areas", token, valueRequest{Value: "Physics"}), http.StatusOK)
	ts.expect(ts.do(http.MethodPatch, "/api/me/name", token, valueRequest{Value: " "}), http.StatusBadRequest)

	ts.expect(ts.do(http.MethodPost, "/api/login", "", LoginRequest{
		Email: "alice@example.com", Password: "N3wPass",
	}), http.StatusOK)

	ts.expect(ts.do(http.MethodDelete, "/api/me", token, nil), http.StatusNoContent)
	ts.expect(ts.do(http.MethodGet, "/api/me", token, nil), http.StatusUnauthorized)
}

func TestQuestionEndpoints(t *testing.T) {
	ts := newTestServer(t)
	student := ts.signupAndLogin("Alice", "alice@example.com", "student")
	teacher := ts.signupAndLogin("Tom", "tom@example.com", "teacher")

	q := QuestionRequest{FocusArea: "Calculus", Question: "d/dx x^2?", Answer: "2x"}
	ts.expect(ts.do(http.MethodPost, "/api/questions", student, q), http.StatusForbidden)
	rec := ts.do(http.MethodPost, "/api/questions", teacher, q)
	ts.expect(rec, http.StatusCreated)
	id := decode[struct {
		ID uint `json:"id"`
	}](t, rec).ID
	ts.expect(ts.do(http.MethodPost, "/api/questions", teacher, QuestionRequest{Question: "x", Answer: " "}), http.StatusBadRequest)

	rec = ts.do(http.MethodGet, "/api/questions?focus_area=calculus&limit=5", student, nil)
	ts.expect(rec, http.StatusOK)
	list := decode[[]questions.Question](t, rec)
	if len(list) != 1 || list[0].ID != id || list[0].FocusArea != "Calculus" {
		t.Fatalf("unexpected questions: %+v", list)
	}
	if list[0].Answer != "" || strings.Contains(rec.Body.String(), `"answer"`) {
		t.Fatalf("students must not receive answers: %s", rec.Body.String())
	}
	rec = ts.do(http.MethodGet, "/api/questions?focus_area=calculus", teacher, nil)
	ts.expect(rec, http.StatusOK)
	if list := decode[[]questions.Question](t, rec); len(list) != 1 || list[0].Answer != "2x" {
		t.Fatalf("teachers should see answers, got %+v", list)
	}
	ts.expect(ts.do(http.MethodGet, "/api/questions?limit=abc", student, nil), http.StatusBadRequest)

	ts.expect(ts.do(http.MethodPost, "/api/sessions/flag", student, FlagRequest{QuestionID: id}), http.StatusOK)
	ts.expect(ts.do(http.MethodPost, "/api/sessions/flag", student, FlagRequest{QuestionID: id + 99}), http.StatusNotFound)
}

func TestCheckAnswerRecordsAttempt(t *testing.T) {
	ts := newTestServer(t)
	student := ts.signupAndLogin("Alice", "alice@example.com", "student")
	teacher := ts.signupAndLogin("Tom", "tom@example.com", "teacher")

	rec := ts.do(http.MethodPost, "/api/questions", teacher, QuestionRequest{Question: "Ohm's law?", Answer: "V=IR"})
	ts.expect(rec, http.StatusCreated)
	id := decode[struct {
		ID uint `json:"id"`
	}](t, rec).ID
	path := fmt.Sprintf("/api/questions/%d/answer", id)

	rec = ts.do(http.MethodPost, path, student, AnswerRequest{Answer: " v=ir "})
	ts.expect(rec, http.StatusOK)
	if got := decode[AnswerResponse](t, rec); !got.Correct || got.Answer != "V=IR" {
		t.Fatalf("unexpected check result: %+v", got)
	}
	rec = ts.do(http.MethodPost, path, student, AnswerRequest{Answer: "P=IV"})
	ts.expect(rec, http.StatusOK)
	if got := decode[AnswerResponse](t, rec); got.Correct {
		t.Fatalf("wrong answer accepted: %+v", got)
	}

	rec = ts.do(http.MethodGet, "/api/me/stats", student, nil)
	ts.expect(rec, http.StatusOK)
	if got := decode[statistics.Summary](t, rec); got.Answered != 2 || got.CorrectAnswers != 1 {
		t.Fatalf("unexpected stats after checks: %+v", got)
	}

	ts.expect(ts.do(http.MethodPost, fmt.Sprintf("/api/questions/%d/answer", id+50), student, AnswerRequest{Answer: "x"}), http.StatusNotFound)
	ts.expect(ts.do(http.MethodPost, "/api/questions/abc/answer", student, AnswerRequest{Answer: "x"}), http.StatusBadRequest)
	ts.expect(ts.do(http.MethodPost, path, student, map[string]string{}), http.StatusBadRequest)
}

func TestTokenIssuer(t *testing.T) {
	if _, err := NewTokenIssuer(""); err == nil {
		t.Fatal("expected an error for an empty secret")
	}
	issuer, err := NewTokenIssuer("secret")
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	now := time.Now()

	raw, err := issuer.Issue(7, "session-token", now, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	id, session, err := issuer.Parse(raw)
	if err != nil || id != 7 || session != "session-token" {
		t.Fatalf("Parse = %d, %q, %v", id, session, err)
	}

	expired, err := issuer.Issue(7, "session-token", now.Add(-2*time.Hour), now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if _, _, err := issuer.Parse(expired); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}
