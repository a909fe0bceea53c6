package events

import "testing"

func TestBusFanOut(t *testing.T) {
	bus := NewBus()

	ch1, unsub1 := bus.Subscribe(TopicPriceTick, 4)
	ch2, unsub2 := bus.Subscribe(TopicPriceTick, 4)
	defer unsub1()
	defer unsub2()

	tick := PriceTick{Symbol: "SBER", Price: 250.5}
	bus.Publish(TopicPriceTick, tick)

	for i, ch := range []<-chan any{ch1, ch2} {
		got, ok := (<-ch).(PriceTick)
		if !ok {
			t.Fatalf("subscriber %d: unexpected payload type", i)
		}
		if got != tick {
			t.Fatalf("subscriber %d: got %+v, want %+v", i, got, tick)
		}
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	_, unsub := bus.Subscribe(TopicSignal, 1)
	defer unsub()

	bus.Publish(TopicSignal, 1)
	bus.Publish(TopicSignal, 2) // buffer full, must not block

	if bus.Dropped() != 1 {
		t.Fatalf("Dropped=%d, want 1", bus.Dropped())
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(TopicDecision, 1)
	unsub()
	unsub() // idempotent

	if _, open := <-ch; open {
		t.Fatal("channel still open after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	bus.Publish(TopicDecision, struct{}{})
}
