package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversPerKind(t *testing.T) {
	bus := NewBus()

	var added, updated []Event
	bus.Subscribe(TaskAdded, func(e Event) { added = append(added, e) })
	bus.Subscribe(TaskUpdated, func(e Event) { updated = append(updated, e) })

	id := uuid.New()
	bus.Publish(Event{Kind: TaskAdded, TaskID: id})
	bus.Publish(Event{Kind: TaskDeleted, TaskID: id})

	require.Len(t, added, 1)
	require.Equal(t, id, added[0].TaskID)
	require.Empty(t, updated)
}

func TestBusMultipleHandlersInOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	bus.Subscribe(TaskMoved, func(Event) { order = append(order, 1) })
	bus.Subscribe(TaskMoved, func(Event) { order = append(order, 2) })

	bus.Publish(Event{Kind: TaskMoved, TaskID: uuid.New()})
	require.Equal(t, []int{1, 2}, order)
}

func TestKindString(t *testing.T) {
	require.Equal(t, "task_added", TaskAdded.String())
	require.Equal(t, "task_updated", TaskUpdated.String())
	require.Equal(t, "task_deleted", TaskDeleted.String())
	require.Equal(t, "task_moved", TaskMoved.String())
}
