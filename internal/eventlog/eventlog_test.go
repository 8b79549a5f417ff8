package eventlog

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2025, 3, 1, 21, 4, 5, 0, time.Local)
	return func() time.Time { return t0 }
}

func TestAppendStampsEntry(t *testing.T) {
	l := New(0, WithClock(fixedClock()))

	e := l.Append("正在启动唤醒序列...", TypeWarning)
	assert.Equal(t, "21:04:05", e.Timestamp)
	assert.Equal(t, TypeWarning, e.Type)
	assert.Equal(t, uint64(1), e.Seq)
	assert.NotEmpty(t, e.ID)

	e2 := l.Append("second", Type("bogus"))
	assert.Equal(t, TypeInfo, e2.Type)
	assert.NotEqual(t, e.ID, e2.ID)
	assert.Greater(t, e2.Seq, e.Seq)
}

func TestSlidingWindowEviction(t *testing.T) {
	l := New(DefaultCapacity)

	for i := 1; i <= 101; i++ {
		l.Append(fmt.Sprintf("entry %d", i), TypeInfo)
	}
	entries := l.Entries()
	require.Len(t, entries, 101)
	assert.Equal(t, "entry 1", entries[0].Message)

	l.Append("entry 102", TypeInfo)
	entries = l.Entries()
	require.Len(t, entries, 101)
	assert.Equal(t, "entry 2", entries[0].Message)
	assert.Equal(t, "entry 102", entries[len(entries)-1].Message)

	for i := 103; i <= 250; i++ {
		l.Append(fmt.Sprintf("entry %d", i), TypeInfo)
		assert.LessOrEqual(t, l.Len(), DefaultCapacity+1)
	}
	assert.Equal(t, "entry 150", l.Entries()[0].Message)
}

func TestSmallCapacity(t *testing.T) {
	l := New(2)
	for i := 1; i <= 5; i++ {
		l.Append(fmt.Sprintf("%d", i), TypeInfo)
	}
	var got []string
	for _, e := range l.Entries() {
		got = append(got, e.Message)
	}
	assert.Equal(t, []string{"3", "4", "5"}, got)
}

func TestSince(t *testing.T) {
	l := New(10)
	for i := 1; i <= 5; i++ {
		l.Append(fmt.Sprintf("%d", i), TypeInfo)
	}

	got := l.Since(3)
	require.Len(t, got, 2)
	assert.Equal(t, "4", got[0].Message)
	assert.Equal(t, "5", got[1].Message)

	assert.Empty(t, l.Since(5))
	assert.Len(t, l.Since(0), 5)
}

func TestSubscribeReceivesNewEntries(t *testing.T) {
	l := New(10)
	l.Append("before", TypeInfo)

	sub := l.Subscribe()
	defer sub.Cancel()

	l.Append("after", TypeSuccess)

	select {
	case e := <-sub.C():
		assert.Equal(t, "after", e.Message)
		assert.Equal(t, TypeSuccess, e.Type)
	case <-time.After(time.Second):
		t.Fatal("no entry delivered")
	}
}

func TestEntriesIsACopy(t *testing.T) {
	l := New(10)
	l.Append("one", TypeInfo)

	entries := l.Entries()
	entries[0].Message = "mutated"
	assert.Equal(t, "one", l.Entries()[0].Message)
}
