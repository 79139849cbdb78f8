// Package enginetest is a conformance suite for engine.Engine
// implementations.
package enginetest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ggoodman/tdclient-go/engine"
	"github.com/ggoodman/tdclient-go/tdjson"
)

// Driver plays the remote side of an engine under test.
type Driver interface {
	// Emit makes raw available to the engine's Receive.
	Emit(ctx context.Context, raw []byte) error
	// NextRequest returns the next request handed to the engine's Send.
	NextRequest(ctx context.Context) (tdjson.SessionID, []byte, error)
}

// Factory creates a fresh, isolated engine and its driver.
type Factory func(t *testing.T) (engine.Engine, Driver)

// ReceiveTimeout is the timeout the suite passes to Receive. Engines backed by
// Redis cannot block for less than a second.
var ReceiveTimeout = time.Second

// RunEngineTests runs the complete Engine test suite against the provided factory.
func RunEngineTests(t *testing.T, factory Factory) {
	t.Run("NewSession_UniqueIDs", func(t *testing.T) { testNewSessionUniqueIDs(t, factory) })
	t.Run("Receive_TimesOutWithoutEvents", func(t *testing.T) { testReceiveTimesOut(t, factory) })
	t.Run("Receive_PreservesEmissionOrder", func(t *testing.T) { testReceiveOrder(t, factory) })
	t.Run("Send_DeliversRequestForSession", func(t *testing.T) { testSendDelivers(t, factory) })
	t.Run("Send_PreservesOrderAcrossSessions", func(t *testing.T) { testSendOrder(t, factory) })
}

func testNewSessionUniqueIDs(t *testing.T, factory Factory) {
	eng, _ := factory(t)

	seen := make(map[tdjson.SessionID]bool)
	for i := 0; i < 50; i++ {
		id, err := eng.NewSession()
		if err != nil {
			t.Fatalf("new session: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate session id %d", id)
		}
		seen[id] = true
	}
}

func testReceiveTimesOut(t *testing.T, factory Factory) {
	eng, _ := factory(t)

	start := time.Now()
	raw, err := eng.Receive(ReceiveTimeout)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if raw != nil {
		t.Fatalf("expected no event, got %s", raw)
	}
	if elapsed := time.Since(start); elapsed > ReceiveTimeout+2*time.Second {
		t.Fatalf("receive blocked for %s, timeout was %s", elapsed, ReceiveTimeout)
	}
}

func testReceiveOrder(t *testing.T, factory Factory) {
	eng, drv := factory(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const n = 5
	for i := 0; i < n; i++ {
		raw, _ := json.Marshal(map[string]any{"@type": "updateTest", "@client_id": 1, "seq": i})
		if err := drv.Emit(ctx, raw); err != nil {
			t.Fatalf("emit %d: %v", i, err)
		}
	}

	for i := 0; i < n; i++ {
		raw, err := eng.Receive(ReceiveTimeout)
		if err != nil {
			t.Fatalf("receive %d: %v", i, err)
		}
		if raw == nil {
			t.Fatalf("receive %d: timed out", i)
		}
		var got struct {
			Seq int `json:"seq"`
		}
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("unmarshal %d: %v", i, err)
		}
		if got.Seq != i {
			t.Fatalf("expected seq %d, got %d", i, got.Seq)
		}
	}
}

func testSendDelivers(t *testing.T, factory Factory) {
	eng, drv := factory(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := eng.NewSession()
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	req, err := tdjson.Encode(tdjson.CheckAuthenticationCode{Code: "2468"}, "corr-1")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := eng.Send(id, req); err != nil {
		t.Fatalf("send: %v", err)
	}

	gotID, raw, err := drv.NextRequest(ctx)
	if err != nil {
		t.Fatalf("next request: %v", err)
	}
	if gotID != id {
		t.Fatalf("expected session %d, got %d", id, gotID)
	}
	h, err := tdjson.ReadHeader(raw)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if h.Type != "checkAuthenticationCode" || h.Extra != "corr-1" {
		t.Fatalf("unexpected header %+v", h)
	}
}

func testSendOrder(t *testing.T, factory Factory) {
	eng, drv := factory(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, _ := eng.NewSession()
	b, _ := eng.NewSession()
	want := []tdjson.SessionID{a, b, a, b}
	for i, id := range want {
		req, _ := tdjson.Encode(tdjson.Raw{Type: "testRequest", Fields: map[string]any{"seq": i}}, "")
		if err := eng.Send(id, req); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	for i, id := range want {
		gotID, raw, err := drv.NextRequest(ctx)
		if err != nil {
			t.Fatalf("next request %d: %v", i, err)
		}
		var got struct {
			Seq int `json:"seq"`
		}
		_ = json.Unmarshal(raw, &got)
		if gotID != id || got.Seq != i {
			t.Fatalf("request %d: expected (%d,%d), got (%d,%d)", i, id, i, gotID, got.Seq)
		}
	}
}
