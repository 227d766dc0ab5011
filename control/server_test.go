package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/katmoor/dmscout/config"
	"github.com/katmoor/dmscout/scroll"
	"github.com/katmoor/dmscout/types"
)

type fakeNavigator struct {
	activated   bool
	dateFilter  time.Time
	months      int
	scrollErr   error
	activateErr error
	reels       []types.ReelRecord
}

func (f *fakeNavigator) Activate(context.Context) error {
	if f.activateErr != nil {
		return f.activateErr
	}
	f.activated = true
	return nil
}

func (f *fakeNavigator) SetDateFilter(_ context.Context, t time.Time) error {
	f.dateFilter = t
	return nil
}

func (f *fakeNavigator) State(context.Context) (types.NavigationStatus, error) {
	return types.NavigationStatus{Enabled: f.activated, ReelCount: len(f.reels)}, nil
}

func (f *fakeNavigator) DetectReels(context.Context) ([]types.ReelRecord, error) {
	return f.reels, nil
}

func (f *fakeNavigator) StoredReels(context.Context) ([]types.ReelRecord, error) {
	return f.reels, nil
}

func (f *fakeNavigator) ScrollToMonthsAgo(_ context.Context, months int) error {
	if f.scrollErr != nil {
		return f.scrollErr
	}
	f.months = months
	return nil
}

func postAction(t *testing.T, nav Navigator, action, body string) map[string]any {
	t.Helper()
	srv := NewServer(config.ControlConfig{Addr: "127.0.0.1:0"}, nav, nil)
	req := httptest.NewRequest(http.MethodPost, "/actions/"+action, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("error decoding response: %v", err)
	}
	return resp
}

func TestPing(t *testing.T) {
	resp := postAction(t, &fakeNavigator{}, "ping", "")
	if resp["success"] != true || resp["message"] != "pong" {
		t.Fatalf("unexpected response %v", resp)
	}
}

func TestActivate(t *testing.T) {
	nav := &fakeNavigator{}
	resp := postAction(t, nav, "activateDmNavigation", "")
	if resp["success"] != true {
		t.Fatalf("unexpected response %v", resp)
	}
	if !nav.activated {
		t.Fatal("navigator not activated")
	}
}

func TestSetDateFilter(t *testing.T) {
	nav := &fakeNavigator{}
	resp := postAction(t, nav, "setDateFilter", `{"date":"2024-02-18"}`)
	if resp["success"] != true {
		t.Fatalf("unexpected response %v", resp)
	}
	want := time.Date(2024, 2, 18, 0, 0, 0, 0, time.UTC)
	if !nav.dateFilter.Equal(want) {
		t.Fatalf("expected filter %v, got %v", want, nav.dateFilter)
	}
}

func TestSetDateFilterRejectsGarbage(t *testing.T) {
	resp := postAction(t, &fakeNavigator{}, "setDateFilter", `{"date":"not a date"}`)
	if resp["success"] != false || resp["error"] == "" {
		t.Fatalf("expected structured failure, got %v", resp)
	}
}

func TestScrollToMonthsAgo(t *testing.T) {
	nav := &fakeNavigator{}
	resp := postAction(t, nav, "scrollToMonthsAgo", `{"months":5}`)
	if resp["success"] != true {
		t.Fatalf("unexpected response %v", resp)
	}
	if nav.months != 5 {
		t.Fatalf("expected 5 months, got %d", nav.months)
	}
}

func TestScrollToTwoMonthsAgo(t *testing.T) {
	nav := &fakeNavigator{}
	resp := postAction(t, nav, "scrollToTwoMonthsAgo", "")
	if resp["success"] != true || nav.months != 2 {
		t.Fatalf("unexpected response %v months=%d", resp, nav.months)
	}
}

func TestScrollRejectsNonPositiveMonths(t *testing.T) {
	resp := postAction(t, &fakeNavigator{}, "scrollToMonthsAgo", `{"months":0}`)
	if resp["success"] != false {
		t.Fatalf("expected failure, got %v", resp)
	}
}

func TestConcurrentScrollIsStructuredFailure(t *testing.T) {
	nav := &fakeNavigator{scrollErr: scroll.ErrAlreadyScrolling}
	resp := postAction(t, nav, "scrollToMonthsAgo", `{"months":2}`)
	if resp["success"] != false {
		t.Fatalf("expected failure, got %v", resp)
	}
	if resp["error"] != "scroll already in progress" {
		t.Fatalf("unexpected error message %v", resp["error"])
	}
}

func TestGetReelData(t *testing.T) {
	nav := &fakeNavigator{reels: []types.ReelRecord{{ID: "r1"}, {ID: "r2"}}}
	resp := postAction(t, nav, "getReelData", "")
	if resp["success"] != true {
		t.Fatalf("unexpected response %v", resp)
	}
	if resp["count"] != float64(2) {
		t.Fatalf("expected count 2, got %v", resp["count"])
	}
}

func TestUnknownAction(t *testing.T) {
	resp := postAction(t, &fakeNavigator{}, "selfDestruct", "")
	if resp["success"] != false {
		t.Fatalf("unknown actions must fail structurally, got %v", resp)
	}
}

func TestGetCurrentState(t *testing.T) {
	nav := &fakeNavigator{activated: true, reels: []types.ReelRecord{{ID: "r1"}}}
	resp := postAction(t, nav, "getCurrentState", "")
	if resp["success"] != true {
		t.Fatalf("unexpected response %v", resp)
	}
	state, ok := resp["state"].(map[string]any)
	if !ok {
		t.Fatalf("missing state payload in %v", resp)
	}
	if state["enabled"] != true {
		t.Fatalf("unexpected state %v", state)
	}
}
