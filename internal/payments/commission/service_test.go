package commission

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halisi-erp/halisi-erp/internal/coa"
	"github.com/halisi-erp/halisi-erp/internal/commissions"
	"github.com/halisi-erp/halisi-erp/internal/finacct"
	"github.com/halisi-erp/halisi-erp/internal/ledger"
	payshared "github.com/halisi-erp/halisi-erp/internal/payments/shared"
	"github.com/halisi-erp/halisi-erp/internal/refnum"
	"github.com/halisi-erp/halisi-erp/internal/shared"
)

type memoryLedger struct {
	entries []ledger.PostingInput
}

func (l *memoryLedger) Post(ctx context.Context, in ledger.PostingInput) (ledger.JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return ledger.JournalEntry{}, err
	}
	l.entries = append(l.entries, in)
	return ledger.JournalEntry{ID: int64(len(l.entries))}, nil
}

func (l *memoryLedger) ReverseLatest(ctx context.Context, in ledger.ReversalInput) (ledger.JournalEntry, error) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if e.SourceModule != in.SourceModule || e.ReferenceID == nil || *e.ReferenceID != in.ReferenceID {
			continue
		}
		mirror := ledger.PostingInput{
			EntryDate:     in.EntryDate,
			ReferenceType: ledger.RefAdjustment,
			SourceModule:  in.SourceModule,
			ReferenceID:   e.ReferenceID,
			Description:   in.Description,
			UserID:        in.UserID,
		}
		for _, line := range e.Lines {
			mirror.Lines = append(mirror.Lines, ledger.LineInput{COAID: line.COAID, Debit: line.Credit, Credit: line.Debit, Memo: line.Memo})
		}
		return l.Post(ctx, mirror)
	}
	return ledger.JournalEntry{}, ledger.ErrEntryNotFound
}

type memoryBalances struct {
	accounts map[int64]finacct.FinancialAccount
}

func (b *memoryBalances) GetForUpdate(ctx context.Context, id int64) (finacct.FinancialAccount, error) {
	a, ok := b.accounts[id]
	if !ok {
		return finacct.FinancialAccount{}, shared.ErrNotFound
	}
	return a, nil
}

func (b *memoryBalances) Credit(ctx context.Context, id int64, amount float64) (finacct.FinancialAccount, error) {
	a, err := b.GetForUpdate(ctx, id)
	if err != nil {
		return finacct.FinancialAccount{}, err
	}
	a.CurrentBalance = shared.Round2(a.CurrentBalance + amount)
	b.accounts[id] = a
	return a, nil
}

func (b *memoryBalances) Debit(ctx context.Context, id int64, amount float64) (finacct.FinancialAccount, error) {
	a, err := b.GetForUpdate(ctx, id)
	if err != nil {
		return finacct.FinancialAccount{}, err
	}
	if a.CurrentBalance < amount {
		return finacct.FinancialAccount{}, &finacct.InsufficientFundsError{AccountName: a.Name, Available: a.CurrentBalance, Required: amount}
	}
	a.CurrentBalance = shared.Round2(a.CurrentBalance - amount)
	b.accounts[id] = a
	return a, nil
}

type memoryCommissions struct {
	commissions map[int64]commissions.Commission
	recipients  map[int64]commissions.Recipient
}

func (c *memoryCommissions) GetForUpdate(ctx context.Context, id int64) (commissions.Commission, error) {
	comm, ok := c.commissions[id]
	if !ok {
		return commissions.Commission{}, shared.ErrNotFound
	}
	return comm, nil
}

func (c *memoryCommissions) GetRecipientForUpdate(ctx context.Context, id int64) (commissions.Recipient, error) {
	r, ok := c.recipients[id]
	if !ok {
		return commissions.Recipient{}, shared.ErrNotFound
	}
	return r, nil
}

func (c *memoryCommissions) ApplyRecipientPayment(ctx context.Context, recipientID int64, delta float64) (commissions.Recipient, error) {
	r, err := c.GetRecipientForUpdate(ctx, recipientID)
	if err != nil {
		return commissions.Recipient{}, err
	}
	paid := shared.Round2(r.AmountPaid + delta)
	if delta > 0 && paid > r.AmountPayable+0.001 {
		return commissions.Recipient{}, fmt.Errorf("%w: commissions: payout exceeds owed to %s", shared.ErrValidation, r.Name)
	}
	r.AmountPaid = paid
	r.PaymentStatus = payshared.StatusFor(paid, r.AmountPayable)
	c.recipients[recipientID] = r
	return r, nil
}

func (c *memoryCommissions) SumPaid(ctx context.Context, commissionID int64) (float64, error) {
	var total float64
	for _, r := range c.recipients {
		if r.CommissionID == commissionID {
			total += r.AmountPaid
		}
	}
	return shared.Round2(total), nil
}

type memoryRefs struct {
	n int64
}

func (r *memoryRefs) Next(ctx context.Context, prefix string, at time.Time) (string, error) {
	r.n++
	return refnum.Format(prefix, at.Year(), int(at.Month()), r.n), nil
}

type memoryRepo struct {
	payments    map[int64]Payment
	items       map[int64][]PaymentItem
	commissions *memoryCommissions
	balances    *memoryBalances
	journal     *memoryLedger
	refs        *memoryRefs
	nextID      int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		payments:    map[int64]Payment{},
		items:       map[int64][]PaymentItem{},
		commissions: &memoryCommissions{commissions: map[int64]commissions.Commission{}, recipients: map[int64]commissions.Recipient{}},
		balances:    &memoryBalances{accounts: map[int64]finacct.FinancialAccount{}},
		journal:     &memoryLedger{},
		refs:        &memoryRefs{},
	}
}

func (r *memoryRepo) List(ctx context.Context) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return Payment{}, shared.ErrNotFound
	}
	p.Items = r.items[id]
	return p, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) GetForUpdate(ctx context.Context, id int64) (Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return Payment{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) Insert(ctx context.Context, p Payment) (Payment, error) {
	r.nextID++
	p.ID = r.nextID
	p.IsActive = true
	r.payments[p.ID] = p
	return p, nil
}

func (r *memoryRepo) UpdateRecord(ctx context.Context, p Payment) error {
	if _, ok := r.payments[p.ID]; !ok {
		return shared.ErrNotFound
	}
	p.Items = nil
	r.payments[p.ID] = p
	return nil
}

func (r *memoryRepo) SetActive(ctx context.Context, id int64, active bool) error {
	p, ok := r.payments[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.IsActive = active
	r.payments[id] = p
	return nil
}

func (r *memoryRepo) InsertItems(ctx context.Context, paymentID int64, items []PaymentItem) error {
	r.items[paymentID] = append(r.items[paymentID], items...)
	return nil
}

func (r *memoryRepo) ListItems(ctx context.Context, paymentID int64) ([]PaymentItem, error) {
	return r.items[paymentID], nil
}

func (r *memoryRepo) DeleteItems(ctx context.Context, paymentID int64) error {
	delete(r.items, paymentID)
	return nil
}

func (r *memoryRepo) ExpenseNode(ctx context.Context) (coa.Account, error) {
	return coa.Account{ID: 700, Name: "Commission Expense", Type: coa.AccountTypeExpense}, nil
}

func (r *memoryRepo) Commissions() commissions.Tx { return r.commissions }
func (r *memoryRepo) Balances() finacct.BalanceTx { return r.balances }
func (r *memoryRepo) Poster() ledger.TxPoster     { return r.journal }
func (r *memoryRepo) Refs() refnum.Generator      { return r.refs }

func (r *memoryRepo) addAccount(id int64, coaID int64, balance float64) {
	r.balances.accounts[id] = finacct.FinancialAccount{ID: id, Name: fmt.Sprintf("account-%d", id), COAID: coaID, CurrentBalance: balance, IsActive: true}
}

func (r *memoryRepo) addCommission(id int64, recipients ...commissions.Recipient) {
	var total float64
	for i := range recipients {
		recipients[i].CommissionID = id
		recipients[i].PaymentStatus = payshared.StatusFor(recipients[i].AmountPaid, recipients[i].AmountPayable)
		r.commissions.recipients[recipients[i].ID] = recipients[i]
		total += recipients[i].AmountPayable
	}
	r.commissions.commissions[id] = commissions.Commission{ID: id, ReferenceNo: fmt.Sprintf("CMM-%d", id), TotalPayable: total, IsActive: true}
}

var testDate = time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)

func TestCreateDistributesAcrossRecipients(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(1, 100, 1000)
	repo.addCommission(5,
		commissions.Recipient{ID: 51, Name: "Asha", AmountPayable: 300},
		commissions.Recipient{ID: 52, Name: "Juma", AmountPayable: 200},
	)
	svc := NewService(repo, nil, nil, nil, nil)

	created, err := svc.Create(context.Background(), Input{
		PaymentDate:  testDate,
		CommissionID: 5,
		AccountID:    1,
		Items: []ItemInput{
			{RecipientID: 51, Amount: 300},
			{RecipientID: 52, Amount: 150},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 450.0, created.TotalAmount)
	require.Equal(t, 550.0, repo.balances.accounts[1].CurrentBalance)
	require.Equal(t, payshared.StatusPaid, repo.commissions.recipients[51].PaymentStatus)
	require.Equal(t, payshared.StatusPartial, repo.commissions.recipients[52].PaymentStatus)

	require.Len(t, repo.journal.entries, 1)
	entry := repo.journal.entries[0]
	require.Equal(t, ledger.RefCommissionPayment, entry.ReferenceType)
	require.Len(t, entry.Lines, 2)
	require.EqualValues(t, 700, entry.Lines[0].COAID)
	require.Equal(t, 450.0, entry.Lines[0].Debit)
	require.Equal(t, 450.0, entry.Lines[1].Credit)
}

func TestCreateOverAllocationRejected(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(1, 100, 1000)
	repo.addCommission(5, commissions.Recipient{ID: 51, Name: "Asha", AmountPayable: 100})
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), Input{
		PaymentDate:  testDate,
		CommissionID: 5,
		AccountID:    1,
		Items:        []ItemInput{{RecipientID: 51, Amount: 150}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.journal.entries)
}

func TestCreateRejectsPayoutBeyondTotalPayable(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(1, 100, 1000)
	repo.addCommission(5,
		commissions.Recipient{ID: 51, Name: "Asha", AmountPayable: 80},
		commissions.Recipient{ID: 52, Name: "Juma", AmountPayable: 80},
	)
	// Recipient shares overstate what the commission owes in total.
	comm := repo.commissions.commissions[5]
	comm.TotalPayable = 100
	repo.commissions.commissions[5] = comm
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), Input{
		PaymentDate:  testDate,
		CommissionID: 5,
		AccountID:    1,
		Items: []ItemInput{
			{RecipientID: 51, Amount: 80},
			{RecipientID: 52, Amount: 80},
		},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.journal.entries)
	require.Equal(t, 1000.0, repo.balances.accounts[1].CurrentBalance)
}

func TestCreateRejectsForeignRecipient(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(1, 100, 1000)
	repo.addCommission(5, commissions.Recipient{ID: 51, Name: "Asha", AmountPayable: 100})
	repo.addCommission(6, commissions.Recipient{ID: 61, Name: "Neema", AmountPayable: 100})
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), Input{
		PaymentDate:  testDate,
		CommissionID: 5,
		AccountID:    1,
		Items:        []ItemInput{{RecipientID: 61, Amount: 50}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteRestoresRecipientsAndBalance(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(1, 100, 1000)
	repo.addCommission(5, commissions.Recipient{ID: 51, Name: "Asha", AmountPayable: 300})
	svc := NewService(repo, nil, nil, nil, nil)

	created, err := svc.Create(context.Background(), Input{
		PaymentDate:  testDate,
		CommissionID: 5,
		AccountID:    1,
		Items:        []ItemInput{{RecipientID: 51, Amount: 300}},
	})
	require.NoError(t, err)
	require.Equal(t, 700.0, repo.balances.accounts[1].CurrentBalance)

	require.NoError(t, svc.Delete(context.Background(), created.ID, 0))
	require.Equal(t, 1000.0, repo.balances.accounts[1].CurrentBalance)
	require.Zero(t, repo.commissions.recipients[51].AmountPaid)
	require.Equal(t, payshared.StatusPending, repo.commissions.recipients[51].PaymentStatus)
	require.Empty(t, repo.items[created.ID])

	require.Len(t, repo.journal.entries, 2)
	require.Equal(t, ledger.RefAdjustment, repo.journal.entries[1].ReferenceType)
}

func TestUpdateReplacesAllocations(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(1, 100, 1000)
	repo.addCommission(5,
		commissions.Recipient{ID: 51, Name: "Asha", AmountPayable: 300},
		commissions.Recipient{ID: 52, Name: "Juma", AmountPayable: 200},
	)
	svc := NewService(repo, nil, nil, nil, nil)

	created, err := svc.Create(context.Background(), Input{
		PaymentDate:  testDate,
		CommissionID: 5,
		AccountID:    1,
		Items:        []ItemInput{{RecipientID: 51, Amount: 200}},
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, Input{
		PaymentDate:  testDate,
		CommissionID: 5,
		AccountID:    1,
		Items: []ItemInput{
			{RecipientID: 51, Amount: 100},
			{RecipientID: 52, Amount: 50},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 150.0, updated.TotalAmount)
	require.Equal(t, created.ReferenceNo, updated.ReferenceNo)
	require.Equal(t, 850.0, repo.balances.accounts[1].CurrentBalance)
	require.Equal(t, 100.0, repo.commissions.recipients[51].AmountPaid)
	require.Equal(t, 50.0, repo.commissions.recipients[52].AmountPaid)
	require.Len(t, repo.journal.entries, 3)
}

type auditTrail struct {
	logs []shared.AuditLog
}

func (a *auditTrail) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestLifecycleIsAudited(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(1, 100, 1000)
	repo.addCommission(5, commissions.Recipient{ID: 51, Name: "Asha", AmountPayable: 300})
	trail := &auditTrail{}
	svc := NewService(repo, nil, trail, nil, nil)

	created, err := svc.Create(context.Background(), Input{
		PaymentDate:  testDate,
		CommissionID: 5,
		AccountID:    1,
		Items:        []ItemInput{{RecipientID: 51, Amount: 300}},
		UserID:       9,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), created.ID, 9))

	require.Len(t, trail.logs, 2)
	require.Equal(t, "commission.create", trail.logs[0].Action)
	require.Equal(t, "commission.delete", trail.logs[1].Action)
	require.Equal(t, "commission_payment", trail.logs[0].Entity)
	require.Equal(t, created.ReferenceNo, trail.logs[0].Meta["reference"])
}
