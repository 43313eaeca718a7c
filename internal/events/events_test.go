package events

import (
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventPhaseChanged)
	bus.PublishPhaseChange("s1", "idle", "submitting", "test.mp3")

	select {
	case received := <-ch:
		ev, ok := received.(*PhaseChangedEvent)
		if !ok {
			t.Fatal("Expected PhaseChangedEvent")
		}
		if ev.NewPhase != "submitting" {
			t.Errorf("Expected new phase 'submitting', got '%s'", ev.NewPhase)
		}
		if ev.FileName != "test.mp3" {
			t.Errorf("Expected file 'test.mp3', got '%s'", ev.FileName)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_TypeFiltering(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	notices := bus.Subscribe(EventNotice)
	all := bus.SubscribeAll()

	bus.PublishResult(EventResultReady, "s1", "h1", 42)

	select {
	case <-notices:
		t.Fatal("notice subscriber should not receive result events")
	default:
	}

	select {
	case ev := <-all:
		if ev.Type() != EventResultReady {
			t.Errorf("expected result_ready, got %s", ev.Type())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("all-events subscriber did not receive event")
	}
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	_ = bus.Subscribe(EventNotice)
	bus.PublishNotice("s1", "missing_input", "first", nil)
	bus.PublishNotice("s1", "missing_input", "second", nil)

	if got := bus.GetDroppedEventCount(); got != 1 {
		t.Errorf("expected 1 dropped event, got %d", got)
	}
}

func TestEventBus_CloseAndNil(t *testing.T) {
	bus := NewEventBus(0)
	ch := bus.Subscribe(EventNotice)
	bus.Close()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Close")
	}

	// Subscribing after close yields a closed channel
	if _, ok := <-bus.SubscribeAll(); ok {
		t.Error("late subscription should be closed")
	}

	var nilBus *EventBus
	nilBus.PublishNotice("s", "k", "m", nil) // must not panic
}

func TestEventBus_UnsubscribeAll(t *testing.T) {
	bus := NewEventBus(4)
	defer bus.Close()

	ch := bus.SubscribeAll()
	bus.UnsubscribeAll(ch)
	bus.PublishPhaseChange("s", "idle", "submitting", "")

	select {
	case <-ch:
		t.Fatal("unsubscribed channel should receive nothing")
	default:
	}
}

func TestTransferProgressEvent_Progress(t *testing.T) {
	ev := &TransferProgressEvent{BytesSent: 25, BytesTotal: 100}
	if ev.Progress() != 0.25 {
		t.Errorf("expected 0.25, got %f", ev.Progress())
	}
	if (&TransferProgressEvent{}).Progress() != 0 {
		t.Error("zero total should report 0")
	}
}
