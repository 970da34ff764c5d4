package billpay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halisi-erp/halisi-erp/internal/categories"
	"github.com/halisi-erp/halisi-erp/internal/coa"
	"github.com/halisi-erp/halisi-erp/internal/finacct"
	"github.com/halisi-erp/halisi-erp/internal/ledger"
	payshared "github.com/halisi-erp/halisi-erp/internal/payments/shared"
	"github.com/halisi-erp/halisi-erp/internal/purchases"
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

type memoryPurchases struct {
	records map[int64]purchases.Purchase
}

func (p *memoryPurchases) GetForUpdate(ctx context.Context, id int64) (purchases.Purchase, error) {
	rec, ok := p.records[id]
	if !ok {
		return purchases.Purchase{}, shared.ErrNotFound
	}
	return rec, nil
}

func (p *memoryPurchases) ApplyPayment(ctx context.Context, id int64, delta float64) (purchases.Purchase, error) {
	rec, err := p.GetForUpdate(ctx, id)
	if err != nil {
		return purchases.Purchase{}, err
	}
	paid := shared.Round2(rec.AmountPaid + delta)
	if delta > 0 && paid > rec.TotalAmount+0.001 {
		return purchases.Purchase{}, fmt.Errorf("%w: purchases: payment exceeds outstanding on %s", shared.ErrValidation, rec.ReferenceNo)
	}
	rec.AmountPaid = paid
	rec.PaymentStatus = payshared.StatusFor(paid, rec.TotalAmount)
	p.records[id] = rec
	return rec, nil
}

type memoryRefs struct {
	n int64
}

func (r *memoryRefs) Next(ctx context.Context, prefix string, at time.Time) (string, error) {
	r.n++
	return refnum.Format(prefix, at.Year(), int(at.Month()), r.n), nil
}

type memoryRepo struct {
	payments    map[int64]BillPayment
	items       map[int64][]PaymentItem
	expenses    map[int64][]PaymentExpense
	allocations map[int64][]PaymentAllocation
	categories  map[int64]categories.Category
	purchases   *memoryPurchases
	balances    *memoryBalances
	journal     *memoryLedger
	refs        *memoryRefs
	nextID      int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		payments:    map[int64]BillPayment{},
		items:       map[int64][]PaymentItem{},
		expenses:    map[int64][]PaymentExpense{},
		allocations: map[int64][]PaymentAllocation{},
		categories:  map[int64]categories.Category{},
		purchases:   &memoryPurchases{records: map[int64]purchases.Purchase{}},
		balances:    &memoryBalances{accounts: map[int64]finacct.FinancialAccount{}},
		journal:     &memoryLedger{},
		refs:        &memoryRefs{},
	}
}

func (r *memoryRepo) List(ctx context.Context) ([]BillPayment, error) {
	var out []BillPayment
	for _, p := range r.payments {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (BillPayment, error) {
	p, ok := r.payments[id]
	if !ok {
		return BillPayment{}, shared.ErrNotFound
	}
	p.Items = r.items[id]
	p.Expenses = r.expenses[id]
	p.Accounts = r.allocations[id]
	return p, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) GetForUpdate(ctx context.Context, id int64) (BillPayment, error) {
	p, ok := r.payments[id]
	if !ok {
		return BillPayment{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) Insert(ctx context.Context, p BillPayment) (BillPayment, error) {
	r.nextID++
	p.ID = r.nextID
	p.IsActive = true
	r.payments[p.ID] = p
	return p, nil
}

func (r *memoryRepo) UpdateRecord(ctx context.Context, p BillPayment) error {
	if _, ok := r.payments[p.ID]; !ok {
		return shared.ErrNotFound
	}
	p.Items, p.Expenses, p.Accounts = nil, nil, nil
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

func (r *memoryRepo) InsertExpenses(ctx context.Context, paymentID int64, expenses []PaymentExpense) error {
	r.expenses[paymentID] = append(r.expenses[paymentID], expenses...)
	return nil
}

func (r *memoryRepo) InsertAllocations(ctx context.Context, paymentID int64, allocations []PaymentAllocation) error {
	r.allocations[paymentID] = append(r.allocations[paymentID], allocations...)
	return nil
}

func (r *memoryRepo) ListItems(ctx context.Context, paymentID int64) ([]PaymentItem, error) {
	return r.items[paymentID], nil
}

func (r *memoryRepo) ListExpenses(ctx context.Context, paymentID int64) ([]PaymentExpense, error) {
	return r.expenses[paymentID], nil
}

func (r *memoryRepo) ListAllocations(ctx context.Context, paymentID int64) ([]PaymentAllocation, error) {
	return r.allocations[paymentID], nil
}

func (r *memoryRepo) DeleteDetails(ctx context.Context, paymentID int64) error {
	delete(r.items, paymentID)
	delete(r.expenses, paymentID)
	delete(r.allocations, paymentID)
	return nil
}

func (r *memoryRepo) GetCategory(ctx context.Context, id int64) (categories.Category, error) {
	c, ok := r.categories[id]
	if !ok {
		return categories.Category{}, shared.ErrNotFound
	}
	return c, nil
}

func (r *memoryRepo) PayableNode(ctx context.Context) (coa.Account, error) {
	return coa.Account{ID: 800, Name: "Accounts Payable", Type: coa.AccountTypeLiability}, nil
}

func (r *memoryRepo) Purchases() purchases.Tx     { return r.purchases }
func (r *memoryRepo) Balances() finacct.BalanceTx { return r.balances }
func (r *memoryRepo) Poster() ledger.TxPoster     { return r.journal }
func (r *memoryRepo) Refs() refnum.Generator      { return r.refs }

func (r *memoryRepo) addAccount(id int64, coaID int64, balance float64) {
	r.balances.accounts[id] = finacct.FinancialAccount{ID: id, Name: fmt.Sprintf("account-%d", id), COAID: coaID, CurrentBalance: balance, IsActive: true}
}

func (r *memoryRepo) addPurchase(id int64, total, paid float64) {
	r.purchases.records[id] = purchases.Purchase{
		ID: id, ReferenceNo: fmt.Sprintf("PUR-%d", id), TotalAmount: total, AmountPaid: paid,
		PaymentStatus: payshared.StatusFor(paid, total), IsActive: true,
	}
}

func (r *memoryRepo) addCategory(id int64, coaID int64) {
	r.categories[id] = categories.Category{ID: id, Name: fmt.Sprintf("category-%d", id), Kind: categories.KindExpense, COAID: coaID, IsActive: true}
}

var testDate = time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC)

// A 400 payment from a 1000 account settling a 400 purchase leaves 600 in
// the account and posts one two-line entry.
func TestCreateSinglePurchaseSingleAccount(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(1, 100, 1000)
	repo.addPurchase(10, 400, 0)
	svc := NewService(repo, nil, nil, nil, nil)

	created, err := svc.Create(context.Background(), Input{
		PaymentDate: testDate,
		Items:       []ItemInput{{PurchaseID: 10, Amount: 400}},
		Accounts:    []AllocationInput{{AccountID: 1, Amount: 400}},
	})
	require.NoError(t, err)
	require.Equal(t, 400.0, created.TotalAmount)
	require.Equal(t, 600.0, repo.balances.accounts[1].CurrentBalance)

	purchase := repo.purchases.records[10]
	require.Equal(t, 400.0, purchase.AmountPaid)
	require.Equal(t, payshared.StatusPaid, purchase.PaymentStatus)

	require.Len(t, repo.journal.entries, 1)
	entry := repo.journal.entries[0]
	require.Equal(t, ledger.RefBillPayment, entry.ReferenceType)
	require.Len(t, entry.Lines, 2)
	require.EqualValues(t, 800, entry.Lines[0].COAID)
	require.Equal(t, 400.0, entry.Lines[0].Debit)
	require.EqualValues(t, 100, entry.Lines[1].COAID)
	require.Equal(t, 400.0, entry.Lines[1].Credit)
}

func TestCreateWithExpensesAndTwoAccounts(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(1, 100, 500)
	repo.addAccount(2, 200, 500)
	repo.addPurchase(10, 600, 0)
	repo.addCategory(7, 550)
	svc := NewService(repo, nil, nil, nil, nil)

	created, err := svc.Create(context.Background(), Input{
		PaymentDate: testDate,
		Items:       []ItemInput{{PurchaseID: 10, Amount: 600}},
		Expenses:    []ExpenseInput{{CategoryID: 7, Amount: 50, Memo: "Bank charges"}},
		Accounts: []AllocationInput{
			{AccountID: 1, Amount: 400},
			{AccountID: 2, Amount: 250},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 650.0, created.TotalAmount)
	require.Equal(t, 100.0, repo.balances.accounts[1].CurrentBalance)
	require.Equal(t, 250.0, repo.balances.accounts[2].CurrentBalance)

	entry := repo.journal.entries[0]
	require.Len(t, entry.Lines, 4)
	require.Equal(t, 600.0, entry.Lines[0].Debit)
	require.Equal(t, ledger.LineInput{COAID: 550, Debit: 50, Memo: "Bank charges"}, entry.Lines[1])
	require.Equal(t, 400.0, entry.Lines[2].Credit)
	require.Equal(t, 250.0, entry.Lines[3].Credit)
}

func TestCreateTripleEqualityViolation(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(1, 100, 1000)
	repo.addPurchase(10, 400, 0)
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), Input{
		PaymentDate: testDate,
		Items:       []ItemInput{{PurchaseID: 10, Amount: 400}},
		Accounts:    []AllocationInput{{AccountID: 1, Amount: 390}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.journal.entries)
	require.Equal(t, 1000.0, repo.balances.accounts[1].CurrentBalance)
}

func TestCreateInsufficientFundsLeavesNoEntry(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(1, 100, 100)
	repo.addPurchase(10, 400, 0)
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), Input{
		PaymentDate: testDate,
		Items:       []ItemInput{{PurchaseID: 10, Amount: 400}},
		Accounts:    []AllocationInput{{AccountID: 1, Amount: 400}},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientFunds)
	require.Empty(t, repo.journal.entries)
}

func TestDeleteRestoresEverything(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(1, 100, 1000)
	repo.addPurchase(10, 400, 0)
	svc := NewService(repo, nil, nil, nil, nil)

	created, err := svc.Create(context.Background(), Input{
		PaymentDate: testDate,
		Items:       []ItemInput{{PurchaseID: 10, Amount: 400}},
		Accounts:    []AllocationInput{{AccountID: 1, Amount: 400}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID, 0))
	require.Equal(t, 1000.0, repo.balances.accounts[1].CurrentBalance)
	require.Zero(t, repo.purchases.records[10].AmountPaid)
	require.Equal(t, payshared.StatusPending, repo.purchases.records[10].PaymentStatus)
	require.Empty(t, repo.items[created.ID])

	require.Len(t, repo.journal.entries, 2)
	original, mirror := repo.journal.entries[0], repo.journal.entries[1]
	require.Equal(t, ledger.RefAdjustment, mirror.ReferenceType)
	for i := range original.Lines {
		require.Equal(t, original.Lines[i].Debit, mirror.Lines[i].Credit)
		require.Equal(t, original.Lines[i].Credit, mirror.Lines[i].Debit)
	}
}

func TestUpdateRepostsWithNewValues(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(1, 100, 1000)
	repo.addPurchase(10, 400, 0)
	repo.addPurchase(11, 300, 0)
	svc := NewService(repo, nil, nil, nil, nil)

	created, err := svc.Create(context.Background(), Input{
		PaymentDate: testDate,
		Items:       []ItemInput{{PurchaseID: 10, Amount: 400}},
		Accounts:    []AllocationInput{{AccountID: 1, Amount: 400}},
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, Input{
		PaymentDate: testDate,
		Items:       []ItemInput{{PurchaseID: 11, Amount: 300}},
		Accounts:    []AllocationInput{{AccountID: 1, Amount: 300}},
	})
	require.NoError(t, err)
	require.Equal(t, created.ReferenceNo, updated.ReferenceNo)
	require.Equal(t, 700.0, repo.balances.accounts[1].CurrentBalance)
	require.Zero(t, repo.purchases.records[10].AmountPaid)
	require.Equal(t, 300.0, repo.purchases.records[11].AmountPaid)

	// original + reversal + reapplication, both compensations tagged ADJUSTMENT
	require.Len(t, repo.journal.entries, 3)
	require.Equal(t, ledger.RefAdjustment, repo.journal.entries[1].ReferenceType)
	require.Equal(t, ledger.RefAdjustment, repo.journal.entries[2].ReferenceType)
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
	repo.addPurchase(10, 400, 0)
	trail := &auditTrail{}
	svc := NewService(repo, nil, trail, nil, nil)

	created, err := svc.Create(context.Background(), Input{
		PaymentDate: testDate,
		Items:       []ItemInput{{PurchaseID: 10, Amount: 400}},
		Accounts:    []AllocationInput{{AccountID: 1, Amount: 400}},
		UserID:      9,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), created.ID, 9))

	require.Len(t, trail.logs, 2)
	require.Equal(t, "billpay.create", trail.logs[0].Action)
	require.Equal(t, "billpay.delete", trail.logs[1].Action)
	require.Equal(t, "bill_payment", trail.logs[0].Entity)
	require.Equal(t, created.ReferenceNo, trail.logs[0].Meta["reference"])
}
