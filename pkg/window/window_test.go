package window_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoralabs/debatemem/pkg/window"
)

func TestPushEvictsOldest(t *testing.T) {
	w := window.New(3)

	w.Push(window.Entry{Role: "proponent", Text: "first", TurnIndex: 1})
	w.Push(window.Entry{Role: "opponent", Text: "second", TurnIndex: 2})
	w.Push(window.Entry{Role: "proponent", Text: "third", TurnIndex: 3})
	w.Push(window.Entry{Role: "opponent", Text: "fourth", TurnIndex: 4})

	entries := w.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "second", entries[0].Text, "oldest entry should be evicted")
	assert.Equal(t, "fourth", entries[2].Text, "newest entry should be last")
}

func TestEntriesReturnsCopy(t *testing.T) {
	w := window.New(2)
	w.Push(window.Entry{Role: "proponent", Text: "original", TurnIndex: 1})

	entries := w.Entries()
	entries[0].Text = "mutated"

	assert.Equal(t, "original", w.Entries()[0].Text)
}

func TestRenderFormat(t *testing.T) {
	w := window.New(5)
	w.Push(window.Entry{Role: "proponent", Text: "Solar is cheap.", TurnIndex: 1})
	w.Push(window.Entry{Role: "opponent", Text: "Storage is not.", TurnIndex: 2})

	rendered := w.Render()
	assert.Equal(t, "[turn 1] proponent: Solar is cheap.\n[turn 2] opponent: Storage is not.", rendered)
}

func TestRenderEmpty(t *testing.T) {
	w := window.New(5)
	assert.Equal(t, "", w.Render())
}

func TestResizeShrinkEvictsOldest(t *testing.T) {
	w := window.New(4)
	for i := 1; i <= 4; i++ {
		w.Push(window.Entry{Role: "proponent", TurnIndex: i})
	}

	w.Resize(2)

	entries := w.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, 3, entries[0].TurnIndex)
	assert.Equal(t, 4, entries[1].TurnIndex)
	assert.Equal(t, 2, w.Capacity())
}

func TestCapacityClamped(t *testing.T) {
	w := window.New(0)
	assert.Equal(t, 1, w.Capacity())

	w.Resize(-5)
	assert.Equal(t, 1, w.Capacity())
}

func TestClear(t *testing.T) {
	w := window.New(3)
	w.Push(window.Entry{Role: "proponent", Text: "turn", TurnIndex: 1})
	require.Equal(t, 1, w.Len())

	w.Clear()

	assert.Equal(t, 0, w.Len())
	assert.Equal(t, 3, w.Capacity(), "clear should not change capacity")
}
