package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe("s1")
	defer cancel()

	bus.Publish(New("s1", EventTypeIterationStarted, SeverityInfo, "iteration 1"))

	select {
	case e := <-ch:
		if e.Type != EventTypeIterationStarted {
			t.Errorf("type = %s, want %s", e.Type, EventTypeIterationStarted)
		}
		if e.Message != "iteration 1" {
			t.Errorf("message = %q", e.Message)
		}
		if e.ID == "" || e.Timestamp.IsZero() {
			t.Error("event must carry an id and timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublish_NoSubscribersIsFine(t *testing.T) {
	bus := NewBus()
	// Must not panic or block
	bus.Publish(New("nobody", EventTypeProgress, SeverityInfo, "hello"))
}

func TestPublish_SessionIsolation(t *testing.T) {
	bus := NewBus()
	ch1, cancel1 := bus.Subscribe("s1")
	defer cancel1()
	ch2, cancel2 := bus.Subscribe("s2")
	defer cancel2()

	bus.Publish(New("s1", EventTypeProgress, SeverityInfo, "for s1"))

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatal("s1 subscriber missed its event")
	}
	select {
	case e := <-ch2:
		t.Fatalf("s2 subscriber got s1's event: %v", e)
	default:
	}
}

func TestPublish_FullSubscriberDropsNotBlocks(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe("s1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Overfill the buffer without draining; Publish must never block
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Publish(New("s1", EventTypeProgress, SeverityInfo, "spam"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestSubscribe_CancelClosesAndDetaches(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe("s1")

	if got := bus.SubscriberCount("s1"); got != 1 {
		t.Fatalf("subscriber count = %d, want 1", got)
	}

	cancel()

	if got := bus.SubscriberCount("s1"); got != 0 {
		t.Errorf("subscriber count after cancel = %d, want 0", got)
	}
	if _, open := <-ch; open {
		t.Error("channel must be closed after cancel")
	}
}

func TestWithData(t *testing.T) {
	e := New("s1", EventTypeHypothesisTested, SeverityInfo, "tested").
		WithData(map[string]interface{}{"confidence": 0.8})
	if e.Data["confidence"] != 0.8 {
		t.Errorf("data = %v", e.Data)
	}
}
