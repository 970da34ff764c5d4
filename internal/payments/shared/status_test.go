package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	require.Equal(t, StatusPending, StatusFor(0, 400))
	require.Equal(t, StatusPartial, StatusFor(150, 400))
	require.Equal(t, StatusPaid, StatusFor(400, 400))
	// float drift within a fraction of a cent still reads as settled
	require.Equal(t, StatusPaid, StatusFor(399.9995, 400))
	require.Equal(t, StatusPending, StatusFor(0.0005, 400))
}

func TestOutstanding(t *testing.T) {
	require.Equal(t, 250.0, Outstanding(150, 400))
	require.Zero(t, Outstanding(400, 400))
	require.Zero(t, Outstanding(410, 400))
}
