package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/starford/notecheck/internal/address"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "artifact.created", Data: map[string]string{"path": "1/m/p/1.000000/gen_note.txt"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: artifact.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"1/m/p/1.000000/gen_note.txt"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishArtifactEvent_ResultsThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First event should trigger results.updated.
	b.PublishArtifactEvent("created", "1/m/p/1.000000/gen_note.txt")
	// Second event immediately should NOT trigger another results.updated.
	b.PublishArtifactEvent("updated", "1/m/p/1.000000/eval_report.json")

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	resultsCount := 0
	artifactCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "results.updated") {
				resultsCount++
			} else {
				artifactCount++
			}
		default:
			break loop
		}
	}

	if artifactCount != 2 {
		t.Errorf("artifact events = %d, want 2", artifactCount)
	}
	if resultsCount != 1 {
		t.Errorf("results events = %d, want 1 (throttled)", resultsCount)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "artifact.updated", Data: map[string]string{"path": "x"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: artifact.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "artifact.updated", Data: map[string]string{"path": "x"}})
	b.PublishArtifactEvent("updated", "1/m/p/1.000000/gen_note.txt")
}

func TestPublishArtifactEvent_DecodesAddress(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishArtifactEvent("deleted", "12/llama3/gen/1700000000.000000/eval_report.json")

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: artifact.deleted") {
			t.Errorf("missing event type in %q", s)
		}
		for _, want := range []string{`"idx":12`, `"model":"llama3"`, `"filename":"eval_report.json"`} {
			if !strings.Contains(s, want) {
				t.Errorf("missing %s in %q", want, s)
			}
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishArtifactEvent_IgnoresUnknownKind(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishArtifactEvent("renamed", "1/m/p/1.000000/gen_note.txt")
	b.Publish(Event{Type: "marker", Data: map[string]string{}})

	select {
	case msg := <-ch:
		if !strings.Contains(string(msg), "event: marker") {
			t.Errorf("unexpected event %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSubscribeScope_FiltersArtifactEvents(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	scoped := b.SubscribeScope(Scope{Idx: address.Only("12"), Filename: address.Only("eval_report.json")})
	defer b.Unsubscribe(scoped)

	b.PublishArtifactEvent("created", "3/llama3/gen/1700000000.000000/eval_report.json")
	b.PublishArtifactEvent("created", "12/llama3/gen/1700000000.000000/gen_note.txt")
	b.PublishArtifactEvent("updated", "12/llama3/gen/1700000000.000000/eval_report.json")

	// results.updated fires on the first publish and reaches every client.
	var got []string
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case msg := <-scoped:
			got = append(got, string(msg))
		case <-timeout:
			t.Fatalf("timeout, got %q", got)
		}
	}
	if !strings.Contains(got[0], "event: results.updated") {
		t.Errorf("first event = %q", got[0])
	}
	if !strings.Contains(got[1], "event: artifact.updated") || !strings.Contains(got[1], `"idx":12`) {
		t.Errorf("second event = %q", got[1])
	}
	select {
	case msg := <-scoped:
		t.Errorf("unexpected extra event %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScopeMatches(t *testing.T) {
	data := ArtifactEvent{Path: "5/m/g1/1.000000/gen_note.txt", Idx: 5, Model: "m", Prompt: "g1", Filename: "gen_note.txt"}
	tests := []struct {
		name    string
		scope   Scope
		decoded bool
		want    bool
	}{
		{"zero scope", Scope{}, true, true},
		{"idx set", Scope{Idx: address.Idxs(4, 5)}, true, true},
		{"other model", Scope{Model: address.Only("x")}, true, false},
		{"undecoded open", Scope{}, false, true},
		{"undecoded narrowed", Scope{Prompt: address.Only("g1")}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scope.Matches(data, tt.decoded); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScopeFromQuery(t *testing.T) {
	s := ScopeFromQuery(url.Values{"idx": {"1,2"}, "model": {"llama3"}})
	if s.Idx.Kind() != address.Set || s.Model.Kind() != address.Literal {
		t.Errorf("kinds = %v %v", s.Idx.Kind(), s.Model.Kind())
	}
	if s.Prompt.Kind() != address.Wildcard || s.Filename.Kind() != address.Wildcard {
		t.Error("absent parameters should be wildcards")
	}
}

func TestSSEHandler_KeepAlive(t *testing.T) {
	b := NewBroker(time.Hour)
	b.keepAlive = 20 * time.Millisecond
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(80 * time.Millisecond)
	cancel()
	<-done

	if !strings.Contains(w.Body.String(), ": ping") {
		t.Errorf("no keepalive in %q", w.Body.String())
	}
}
