package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validPosting() PostingInput {
	return PostingInput{
		EntryDate:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		ReferenceType: RefExpense,
		SourceModule:  "EXPENSE",
		Description:   "Office rent for March",
		UserID:        7,
		Lines: []LineInput{
			{COAID: 51, Debit: 350},
			{COAID: 11, Credit: 350},
		},
	}
}

func TestPostingInputValidate(t *testing.T) {
	require.NoError(t, validPosting().Validate())
}

func TestPostingInputRejectsUnbalancedLines(t *testing.T) {
	in := validPosting()
	in.Lines[1].Credit = 349.99
	require.ErrorIs(t, in.Validate(), ErrUnbalanced)
}

func TestPostingInputBalancesAtCentPrecision(t *testing.T) {
	in := validPosting()
	// 0.1+0.2 != 0.3 in float64, but both print as 0.30.
	in.Lines = []LineInput{
		{COAID: 51, Debit: 0.1},
		{COAID: 52, Debit: 0.2},
		{COAID: 11, Credit: 0.3},
	}
	require.NoError(t, in.Validate())
}

func TestPostingInputRejectsSingleLine(t *testing.T) {
	in := validPosting()
	in.Lines = in.Lines[:1]
	require.ErrorIs(t, in.Validate(), ErrTooFewLines)
}

func TestPostingInputRejectsMixedLine(t *testing.T) {
	in := validPosting()
	in.Lines[0].Credit = 350
	require.Error(t, in.Validate())
}

func TestPostingInputRejectsZeroAndNegativeLines(t *testing.T) {
	in := validPosting()
	in.Lines[0].Debit = 0
	require.Error(t, in.Validate())

	in = validPosting()
	in.Lines[0].Debit = -350
	require.Error(t, in.Validate())
}

func TestPostingInputRejectsUnknownReferenceType(t *testing.T) {
	in := validPosting()
	in.ReferenceType = "TRANSFER"
	require.Error(t, in.Validate())
}

func TestPostingInputRequiresSourceModuleWithReference(t *testing.T) {
	in := validPosting()
	refID := int64(42)
	in.ReferenceID = &refID
	in.SourceModule = ""
	require.Error(t, in.Validate())
}

func TestMirrorLinesSwapsSides(t *testing.T) {
	mirrored := mirrorLines([]JournalEntryLine{
		{COAID: 51, Debit: 350, Memo: "rent"},
		{COAID: 11, Credit: 350},
	})
	require.Equal(t, []LineInput{
		{COAID: 51, Credit: 350, Memo: "rent"},
		{COAID: 11, Debit: 350},
	}, mirrored)
}
