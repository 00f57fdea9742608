package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSineDatasetShape(t *testing.T) {
	dataset, labels := sineDataset(100, 1)

	require.Equal(t, []string{"sine"}, labels)
	require.Len(t, dataset, 100)
	for _, s := range dataset {
		require.Len(t, s.Inputs, 1)
		require.Len(t, s.Outputs, 1)
		require.GreaterOrEqual(t, s.Inputs[0], 0.0)
		require.Less(t, s.Inputs[0], 2.0)
		require.GreaterOrEqual(t, s.Outputs[0], -1.0)
		require.LessOrEqual(t, s.Outputs[0], 1.0)
	}
}

func TestSineDatasetIsSeeded(t *testing.T) {
	a, _ := sineDataset(10, 5)
	b, _ := sineDataset(10, 5)

	require.Equal(t, a, b)
}
