package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"agenda-service/internal/auth"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	a := &App{Log: zerolog.Nop()}
	return a.Router([]string{"test-token"}, "", nil)
}

func do(router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAPIRejectsMissingBearer(t *testing.T) {
	router := newTestRouter(t)
	rec := do(router, http.MethodGet, "/api/availability", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAPIRejectsWrongToken(t *testing.T) {
	router := newTestRouter(t)
	rec := do(router, http.MethodGet, "/api/availability", "wrong", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAvailabilityValidatesParams(t *testing.T) {
	router := newTestRouter(t)

	rec := do(router, http.MethodGet, "/api/availability", "test-token", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing params: status = %d, want 400", rec.Code)
	}

	rec = do(router, http.MethodGet, "/api/availability?professional_id=p&specialty_id=s&date=31-01-2025", "test-token", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: status = %d, want 400", rec.Code)
	}
}

func TestBookRejectsMalformedBody(t *testing.T) {
	router := newTestRouter(t)
	rec := do(router, http.MethodPost, "/api/book", "test-token", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAuthStartRequiresUserID(t *testing.T) {
	router := newTestRouter(t)
	rec := do(router, http.MethodGet, "/api/auth/start", "test-token", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestOAuthCallbackIsOpenButValidated(t *testing.T) {
	router := newTestRouter(t)

	// no bearer required on the redirect target
	rec := do(router, http.MethodGet, "/oauth2callback", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing params: status = %d, want 400", rec.Code)
	}

	rec = do(router, http.MethodGet, "/oauth2callback?code=x&state=%25%25", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed state: status = %d, want 400", rec.Code)
	}
}

func TestWebhookRequiresChannelHeader(t *testing.T) {
	router := newTestRouter(t)
	rec := do(router, http.MethodPost, "/webhook/calendar-notify", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWorkingHoursValidatesDayOfWeek(t *testing.T) {
	router := newTestRouter(t)
	body := `[{"day_of_week": 9, "is_working_day": true, "start_time": "09:00", "end_time": "17:00"}]`
	rec := do(router, http.MethodPost, "/api/professionals/p1/working-hours", "test-token", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRateLimitMiddlewareApplies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := &App{Log: zerolog.Nop()}
	router := a.Router([]string{"test-token"}, "", auth.NewRateLimiter(0, 1))

	first := do(router, http.MethodGet, "/api/availability", "test-token", "")
	if first.Code == http.StatusTooManyRequests {
		t.Fatalf("first request limited: %d", first.Code)
	}
	second := do(router, http.MethodGet, "/api/availability", "test-token", "")
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", second.Code)
	}
}
