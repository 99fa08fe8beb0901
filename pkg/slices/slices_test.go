package slices

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndex(t *testing.T) {
	data := []string{"alpha1", "alpha2", "bravo1", "bravo2"}

	// Index of first element
	result := Index(data, "alpha1")
	require.Equal(t, 0, result)

	// Index of last element
	result = Index(data, "bravo2")
	require.Equal(t, 3, result)

	// Index of something that does not exist in the slice
	result = Index(data, "not there")
	require.Equal(t, -1, result)

	// Empty slice should not contain anything
	result = Index([]string{}, "anything")
	require.Equal(t, -1, result)
	data = nil
	result = Index(data, "")
	require.Equal(t, -1, result)
}

func TestContains(t *testing.T) {
	data := []string{"alpha1", "alpha2", "bravo1", "bravo2"}

	// Contains first element
	result := Contains(data, "alpha1")
	require.True(t, result)

	// Contains last element
	result = Contains(data, "bravo2")
	require.True(t, result)

	// Returns false if asked about element not in the slice
	result = Contains(data, "not there")
	require.False(t, result)

	// Empty slice should not contain anything
	result = Contains([]string{}, "anything")
	require.False(t, result)
	data = nil
	result = Contains(data, "")
	require.False(t, result)
}
