package eventbus_test

import (
	"sync/atomic"
	"testing"

	"github.com/gpii/win-service/internal/eventbus"
	"github.com/stretchr/testify/assert"
)

func TestBus_PublishDeliversToAllSubscribers(t *testing.T) {
	b := eventbus.New()

	var count int32
	b.Subscribe(func(eventbus.Event) { atomic.AddInt32(&count, 1) })
	b.Subscribe(func(eventbus.Event) { atomic.AddInt32(&count, 1) })

	b.Publish(eventbus.Event{Name: "service.start"})

	assert.Equal(t, int32(2), atomic.LoadInt32(&count))
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := eventbus.New()

	var count int32
	sub := b.Subscribe(func(eventbus.Event) { atomic.AddInt32(&count, 1) })

	sub.Unsubscribe()
	assert.False(t, sub.Active())

	b.Publish(eventbus.Event{Name: "service.stop"})
	assert.Equal(t, int32(0), atomic.LoadInt32(&count))
}

func TestBus_HandlerReceivesEventPayload(t *testing.T) {
	b := eventbus.New()

	var got eventbus.Event
	b.Subscribe(func(e eventbus.Event) { got = e })

	b.Publish(eventbus.Event{Name: "child.exited", Payload: 42})

	assert.Equal(t, "child.exited", got.Name)
	assert.Equal(t, 42, got.Payload)
}

func TestBus_DoubleUnsubscribeIsSafe(t *testing.T) {
	b := eventbus.New()
	sub := b.Subscribe(func(eventbus.Event) {})

	sub.Unsubscribe()
	assert.NotPanics(t, func() { sub.Unsubscribe() })
}
