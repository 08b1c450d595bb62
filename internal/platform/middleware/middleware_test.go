package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// newDesk wires the request chain the server uses in front of a few desk
// routes and captures everything logged.
func newDesk(t *testing.T) (*echo.Echo, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	e := echo.New()
	e.Use(RequestID())
	e.Use(Logger(logger))
	e.Use(Recovery(logger))

	e.GET("/api/v1/view", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"page": 1, "request_id": c.Get("request_id")})
	})
	e.GET("/api/v1/patients/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	})
	e.POST("/api/v1/form/submit", func(c echo.Context) error {
		panic("submit exploded")
	})
	e.POST("/api/v1/reload", func(c echo.Context) error {
		c.NoContent(http.StatusAccepted)
		panic("late failure")
	})
	e.GET("/api/v1/ws", func(c echo.Context) error {
		panic(http.ErrAbortHandler)
	})
	return e, &buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]any
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			t.Fatalf("log line %q is not JSON: %v", raw, err)
		}
		lines = append(lines, line)
	}
	return lines
}

func TestRequestChain_RequestLog(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
		level  string
	}{
		{"view", http.MethodGet, "/api/v1/view", http.StatusOK, "info"},
		{"missing patient", http.MethodGet, "/api/v1/patients/404", http.StatusNotFound, "warn"},
		{"panicking submit", http.MethodPost, "/api/v1/form/submit", http.StatusInternalServerError, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, buf := newDesk(t)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			var request map[string]any
			for _, line := range logLines(t, buf) {
				if line["message"] == "request" {
					request = line
				}
			}
			if request == nil {
				t.Fatalf("no request log line in %s", buf.String())
			}
			if request["level"] != tt.level || request["status"] != float64(tt.status) || request["path"] != tt.path {
				t.Errorf("unexpected request log %v", request)
			}
			if request["request_id"] != rec.Header().Get(RequestIDHeader) {
				t.Errorf("logged request id %v does not match header %q", request["request_id"], rec.Header().Get(RequestIDHeader))
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	e, _ := newDesk(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/view", nil))
	generated := rec.Header().Get(RequestIDHeader)
	if len(generated) != 36 {
		t.Errorf("expected a generated uuid, got %q", generated)
	}
	if !strings.Contains(rec.Body.String(), generated) {
		t.Errorf("handler did not see request id %q: %s", generated, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/view", nil)
	req.Header.Set(RequestIDHeader, "desk-7")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "desk-7" {
		t.Errorf("expected caller id desk-7 echoed back, got %q", got)
	}
}

func TestRecovery_LogsPanic(t *testing.T) {
	e, buf := newDesk(t)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/form/submit", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "exploded") {
		t.Errorf("panic value leaked to the client: %s", rec.Body.String())
	}
	var found bool
	for _, line := range logLines(t, buf) {
		if line["message"] != "handler panicked" {
			continue
		}
		found = true
		if line["error"] != "submit exploded" || line["path"] != "/api/v1/form/submit" {
			t.Errorf("unexpected panic log %v", line)
		}
		if stack, _ := line["stack"].(string); !strings.Contains(stack, "goroutine") {
			t.Errorf("expected a stack trace, got %q", stack)
		}
	}
	if !found {
		t.Errorf("no panic log line in %s", buf.String())
	}
}

func TestRecovery_CommittedResponse(t *testing.T) {
	e, _ := newDesk(t)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reload", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("expected the written 202 to stand, got %d", rec.Code)
	}
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	e, _ := newDesk(t)
	defer func() {
		if r := recover(); r != http.ErrAbortHandler {
			t.Errorf("expected http.ErrAbortHandler to propagate, got %v", r)
		}
	}()
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil))
	t.Error("expected a panic")
}
