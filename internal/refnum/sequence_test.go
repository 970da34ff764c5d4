package refnum

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	require.Equal(t, "BPV.2026/03/0007", Format(PrefixBillPay, 2026, 3, 7))
	require.Equal(t, "PAY.2026/11/1234", Format(PrefixPayment, 2026, 11, 1234))
	require.Equal(t, "EXP.2026/01/10000", Format(PrefixExpense, 2026, 1, 10000))
}
