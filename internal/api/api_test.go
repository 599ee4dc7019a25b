package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/scam-investigator/internal/events"
)

func authTestRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(token), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := authTestRouter("s3cret")

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token s3cret", http.StatusForbidden},
		{"wrong token", "Bearer nope", http.StatusForbidden},
		{"valid token", "Bearer s3cret", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/protected", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s: status %d, want %d", tc.name, w.Code, tc.want)
		}
	}
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	r := authTestRouter("")
	req := httptest.NewRequest("GET", "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("empty token must disable auth, got %d", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(60, 2)
	if !rl.allow("10.0.0.1") || !rl.allow("10.0.0.1") {
		t.Fatal("burst must admit the first two requests")
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("third request must be limited")
	}
	// Buckets are per IP.
	if !rl.allow("10.0.0.2") {
		t.Fatal("a fresh IP must get its own bucket")
	}
}

func TestRunnerListOrder(t *testing.T) {
	r := NewRunner()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	r.add(&Run{ID: "b", StartedAt: base.Add(time.Minute)})
	r.add(&Run{ID: "a", StartedAt: base})
	r.add(&Run{ID: "c", StartedAt: base.Add(2 * time.Minute)})

	runs := r.List()
	if len(runs) != 3 || runs[0].ID != "a" || runs[2].ID != "c" {
		t.Fatalf("runs not ordered by start time: %v", runs)
	}

	r.remove("b")
	if r.Get("b") != nil {
		t.Fatal("removed run still present")
	}
	if r.Get("a") == nil {
		t.Fatal("remaining run lost")
	}
}

func TestOperatorGuidanceAnswer(t *testing.T) {
	g := NewOperatorGuidance()
	if !g.Answer(events.GuidanceCommand{Action: events.GuidanceClick, Value: "#btn"}) {
		t.Fatal("answer must queue")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan events.GuidanceCommand, 1)
	go func() { done <- g.Handle(nil) }()

	select {
	case cmd := <-done:
		if cmd.Action != events.GuidanceClick || cmd.Value != "#btn" {
			t.Fatalf("queued command lost: %+v", cmd)
		}
	case <-ctx.Done():
		t.Fatal("queued answer must be consumed immediately")
	}
}

func TestRunSinkTracksState(t *testing.T) {
	run := &Run{ID: "r1"}
	sink := runSink{run: run}

	sink.HandleEvent(events.Event{
		Type: events.EventStateChanged,
		Data: map[string]interface{}{"state": "FILL_REGISTER", "url": "https://scam.example/signup"},
	})
	sink.HandleEvent(events.Event{
		Type: events.EventScreenshot,
		Data: map[string]interface{}{"screenshot": "aGVsbG8="},
	})

	v := run.view(true)
	if v.State != "FILL_REGISTER" || v.PageURL != "https://scam.example/signup" || v.Screenshot != "aGVsbG8=" {
		t.Fatalf("run view wrong: %+v", v)
	}
	// Screenshots are heavy; polls opt in.
	if run.view(false).Screenshot != "" {
		t.Fatal("screenshot must be omitted unless requested")
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("a1b2c3d4e5"); got != "a1b2c3d4" {
		t.Fatalf("shortID wrong: %s", got)
	}
	if got := shortID("ab"); got != "ab" {
		t.Fatalf("short input must pass through: %s", got)
	}
}
