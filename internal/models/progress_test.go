package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBranchProgress(t *testing.T) {
	require.Zero(t, BranchProgress(nil))

	tasks := []Task{
		{Status: StatusDone},
		{Status: StatusTodo},
		{Status: StatusInProgress},
		{Status: StatusDone},
	}
	require.InDelta(t, 0.5, BranchProgress(tasks), 1e-9)

	require.InDelta(t, 1.0, BranchProgress([]Task{{Status: StatusDone}}), 1e-9)
}

func TestValidStatus(t *testing.T) {
	for _, s := range []string{StatusTodo, StatusInProgress, StatusDone} {
		require.True(t, ValidStatus(s))
	}
	require.False(t, ValidStatus(""))
	require.False(t, ValidStatus("cancelled"))
}

func TestValidPriority(t *testing.T) {
	require.True(t, ValidPriority(PriorityMin))
	require.True(t, ValidPriority(PriorityDefault))
	require.True(t, ValidPriority(PriorityMax))
	require.False(t, ValidPriority(0))
	require.False(t, ValidPriority(6))
}
