package events

import (
	"testing"

	"github.com/gridmind/gridmind/internal/core"
)

func TestBus_PublishToMatchingSubscribers(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	all := bus.Subscribe()
	states := bus.Subscribe(TypeCellStateChanged)

	bus.Publish(NewCellStateChangedEvent("s1", core.CellRef{Row: 1, Col: "B"}, core.CellStateQueued, ""))
	bus.Publish(NewColumnCancelledEvent("s1", "B"))

	ev := <-all
	if ev.EventType() != TypeCellStateChanged {
		t.Fatalf("expected state change first, got %s", ev.EventType())
	}
	ev = <-all
	if ev.EventType() != TypeColumnCancelled {
		t.Fatalf("expected cancel event, got %s", ev.EventType())
	}

	ev = <-states
	if ev.EventType() != TypeCellStateChanged {
		t.Fatalf("filtered subscriber got %s", ev.EventType())
	}
	select {
	case extra := <-states:
		t.Fatalf("filtered subscriber received unexpected %s", extra.EventType())
	default:
	}
}

func TestBus_DropsOldestWhenFull(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	ch := bus.Subscribe()

	bus.Publish(NewCellStateChangedEvent("s1", core.CellRef{Row: 0, Col: "A"}, core.CellStateQueued, ""))
	bus.Publish(NewCellStateChangedEvent("s1", core.CellRef{Row: 0, Col: "A"}, core.CellStateInFlight, ""))

	ev := (<-ch).(CellStateChangedEvent)
	if ev.State != string(core.CellStateInFlight) {
		t.Fatalf("expected newest event kept, got %s", ev.State)
	}
	if bus.DroppedCount() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", bus.DroppedCount())
	}
}

func TestBus_PublishAfterCloseIsNoop(t *testing.T) {
	bus := NewBus(4)
	ch := bus.Subscribe()
	bus.Close()

	bus.Publish(NewColumnCancelledEvent("s1", "A"))

	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed on unsubscribe")
	}
}
