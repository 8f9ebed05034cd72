package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_EmitInvokesInSubscriptionOrder(t *testing.T) {
	b := New()
	var order []int
	b.On("x", func(any) { order = append(order, 1) })
	b.On("x", func(any) { order = append(order, 2) })
	b.On("x", func(any) { order = append(order, 3) })

	b.Emit("x", nil)

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestBus_UnsubscribeRemovesOnlyThatHandler(t *testing.T) {
	b := New()
	var got []string
	unsubA := b.On("x", func(any) { got = append(got, "a") })
	b.On("x", func(any) { got = append(got, "b") })

	unsubA()
	b.Emit("x", nil)

	assert.Equal(t, []string{"b"}, got)
}

func TestBus_UnsubscribeTwiceIsNoop(t *testing.T) {
	b := New()
	unsub := b.On("x", func(any) {})
	unsub()
	assert.NotPanics(t, func() { unsub() })
}

func TestBus_HandlerMayUnsubscribeSelfMidEmit(t *testing.T) {
	b := New()
	var calls int
	var unsub Unsubscribe
	unsub = b.On("x", func(any) {
		calls++
		unsub()
	})

	b.Emit("x", nil)
	b.Emit("x", nil)

	assert.Equal(t, 1, calls)
}

func TestBus_PayloadDeliveredToHandler(t *testing.T) {
	b := New()
	var got any
	b.On("vad", func(p any) { got = p })
	b.Emit("vad", 42)
	assert.Equal(t, 42, got)
}

func TestBus_ClearRemovesAllSubscriptions(t *testing.T) {
	b := New()
	var calls int
	b.On("x", func(any) { calls++ })
	b.Clear()
	b.Emit("x", nil)
	assert.Equal(t, 0, calls)
}

func TestBus_DistinctEventsIndependent(t *testing.T) {
	b := New()
	var a, c int
	b.On("a", func(any) { a++ })
	b.On("c", func(any) { c++ })
	b.Emit("a", nil)
	assert.Equal(t, 1, a)
	assert.Equal(t, 0, c)
}
