package events

import (
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestBus_FanOutAndOrder(t *testing.T) {
	bus := NewBus("inv-1")
	defer bus.Close()

	sink := NewMemorySink()
	bus.AddSink(sink)

	bus.Emit(EventSiteStarted, map[string]interface{}{"url": "https://x.test"})
	bus.Emit(EventProgress, map[string]interface{}{"phase": "recon"})
	bus.Emit(EventSiteCompleted, nil)

	waitFor(t, func() bool { return len(sink.Events()) == 3 })

	evs := sink.Events()
	if evs[0].Type != EventSiteStarted || evs[2].Type != EventSiteCompleted {
		t.Fatalf("FIFO order broken: %v %v %v", evs[0].Type, evs[1].Type, evs[2].Type)
	}
	for _, ev := range evs {
		if ev.InvestigationID != "inv-1" {
			t.Fatalf("investigation id missing: %+v", ev)
		}
	}
}

type panicSink struct{}

func (panicSink) Name() string        { return "panic" }
func (panicSink) HandleEvent(_ Event) { panic("boom") }

func TestBus_SinkPanicIsolated(t *testing.T) {
	bus := NewBus("inv-2")
	defer bus.Close()

	bus.AddSink(panicSink{})
	good := NewMemorySink()
	bus.AddSink(good)

	bus.Emit(EventLog, map[string]interface{}{"msg": "hello"})

	waitFor(t, func() bool { return len(good.ByType(EventLog)) == 1 })
}

func TestBus_SnapshotCache(t *testing.T) {
	bus := NewBus("inv-3")
	defer bus.Close()

	bus.Emit(EventStateChanged, map[string]interface{}{"state": "FIND_REGISTER", "url": "https://x.test/reg"})
	bus.Emit(EventScreenshot, map[string]interface{}{"screenshot": "aGVsbG8="})

	snap := bus.CurrentSnapshot()
	if snap.State != "FIND_REGISTER" || snap.URL != "https://x.test/reg" || snap.ScreenshotB64 != "aGVsbG8=" {
		t.Fatalf("snapshot not cached: %+v", snap)
	}

	// Late joiner receives the cached state.
	late := NewMemorySink()
	bus.AddSink(late)
	waitFor(t, func() bool { return len(late.ByType(EventStateChanged)) >= 1 })
}

func TestGuidance_AutoSkip(t *testing.T) {
	bus := NewBus("inv-4")
	defer bus.Close()
	bus.SetAutoGuidance(AutoSkip{})

	cmd, err := bus.RequestGuidance(map[string]interface{}{"reason": "stuck"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Action != GuidanceSkip {
		t.Fatalf("expected skip, got %s", cmd.Action)
	}
}

func TestGuidance_HumanResponse(t *testing.T) {
	bus := NewBus("inv-5")
	defer bus.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		bus.ProvideGuidance(GuidanceCommand{Action: GuidanceClick, Value: "#next"})
	}()

	cmd, err := bus.RequestGuidance(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Action != GuidanceClick || cmd.Value != "#next" {
		t.Fatalf("wrong command: %+v", cmd)
	}
}

func TestGuidance_CancelledOnClose(t *testing.T) {
	bus := NewBus("inv-6")

	errCh := make(chan error, 1)
	go func() {
		_, err := bus.RequestGuidance(nil)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	bus.Close()

	select {
	case err := <-errCh:
		if err != ErrBusClosed {
			t.Fatalf("expected ErrBusClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("guidance wait did not abort on close")
	}
}

func TestInterject_LatestWins(t *testing.T) {
	bus := NewBus("inv-7")
	defer bus.Close()

	if _, ok := bus.CheckInterject(); ok {
		t.Fatal("expected no pending interject")
	}

	bus.Interject(GuidanceCommand{Action: GuidanceContinue})
	bus.Interject(GuidanceCommand{Action: GuidanceGoto, Value: "https://x.test/deposit"})

	cmd, ok := bus.CheckInterject()
	if !ok || cmd.Action != GuidanceGoto {
		t.Fatalf("expected latest interject, got %+v ok=%v", cmd, ok)
	}
	if _, ok := bus.CheckInterject(); ok {
		t.Fatal("interject queue not drained")
	}
}
