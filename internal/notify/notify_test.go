package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFanOut(t *testing.T) {
	b := New[int](4, false)
	s1 := b.Subscribe()
	s2 := b.Subscribe()

	b.Publish(7)

	assert.Equal(t, 7, <-s1.C())
	assert.Equal(t, 7, <-s2.C())
	assert.Equal(t, 2, b.Len())
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	b := New[int](2, false)
	sub := b.Subscribe()

	for i := 1; i <= 5; i++ {
		b.Publish(i)
	}

	assert.Equal(t, 4, <-sub.C())
	assert.Equal(t, 5, <-sub.C())
	select {
	case v := <-sub.C():
		t.Fatalf("unexpected extra value %d", v)
	default:
	}
}

func TestRetainedValueReplayed(t *testing.T) {
	b := New[string](4, true)

	early := b.Subscribe()
	select {
	case v := <-early.C():
		t.Fatalf("nothing published yet, got %q", v)
	default:
	}

	b.Publish("a")
	b.Publish("b")

	late := b.Subscribe()
	assert.Equal(t, "b", <-late.C())
}

func TestCancelAndClose(t *testing.T) {
	b := New[int](1, false)
	sub := b.Subscribe()
	sub.Cancel()
	sub.Cancel()

	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Equal(t, 0, b.Len())

	other := b.Subscribe()
	b.Close()
	_, ok = <-other.C()
	assert.False(t, ok)

	// Publishing after close is a no-op and subscribing yields a closed channel.
	b.Publish(1)
	after := b.Subscribe()
	_, ok = <-after.C()
	require.False(t, ok)
}
