package income

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halisi-erp/halisi-erp/internal/coa"
	"github.com/halisi-erp/halisi-erp/internal/finacct"
	"github.com/halisi-erp/halisi-erp/internal/ledger"
	payshared "github.com/halisi-erp/halisi-erp/internal/payments/shared"
	"github.com/halisi-erp/halisi-erp/internal/refnum"
	"github.com/halisi-erp/halisi-erp/internal/sales"
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

type memorySales struct {
	records map[int64]sales.Sale
}

func (s *memorySales) GetForUpdate(ctx context.Context, id int64) (sales.Sale, error) {
	sale, ok := s.records[id]
	if !ok {
		return sales.Sale{}, shared.ErrNotFound
	}
	return sale, nil
}

func (s *memorySales) ApplyPayment(ctx context.Context, id int64, delta float64) (sales.Sale, error) {
	sale, err := s.GetForUpdate(ctx, id)
	if err != nil {
		return sales.Sale{}, err
	}
	paid := shared.Round2(sale.AmountPaid + delta)
	if delta > 0 && paid > sale.TotalAmount+0.001 {
		return sales.Sale{}, fmt.Errorf("%w: sales: receipt exceeds outstanding on %s", shared.ErrValidation, sale.ReferenceNo)
	}
	sale.AmountPaid = paid
	sale.PaymentStatus = payshared.StatusFor(paid, sale.TotalAmount)
	s.records[id] = sale
	return sale, nil
}

type memoryRefs struct {
	n int64
}

func (r *memoryRefs) Next(ctx context.Context, prefix string, at time.Time) (string, error) {
	r.n++
	return refnum.Format(prefix, at.Year(), int(at.Month()), r.n), nil
}

type memoryRepo struct {
	records  map[int64]Income
	sales    *memorySales
	balances *memoryBalances
	journal  *memoryLedger
	refs     *memoryRefs
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		records:  map[int64]Income{},
		sales:    &memorySales{records: map[int64]sales.Sale{}},
		balances: &memoryBalances{accounts: map[int64]finacct.FinancialAccount{}},
		journal:  &memoryLedger{},
		refs:     &memoryRefs{},
	}
}

func (r *memoryRepo) List(ctx context.Context) ([]Income, error) {
	var out []Income
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Income, error) {
	rec, ok := r.records[id]
	if !ok {
		return Income{}, shared.ErrNotFound
	}
	return rec, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) GetForUpdate(ctx context.Context, id int64) (Income, error) {
	return r.Get(ctx, id)
}

func (r *memoryRepo) Insert(ctx context.Context, rec Income) (Income, error) {
	r.nextID++
	rec.ID = r.nextID
	rec.IsActive = true
	r.records[rec.ID] = rec
	return rec, nil
}

func (r *memoryRepo) UpdateRecord(ctx context.Context, rec Income) error {
	if _, ok := r.records[rec.ID]; !ok {
		return shared.ErrNotFound
	}
	r.records[rec.ID] = rec
	return nil
}

func (r *memoryRepo) SetActive(ctx context.Context, id int64, active bool) error {
	rec, ok := r.records[id]
	if !ok {
		return shared.ErrNotFound
	}
	rec.IsActive = active
	r.records[id] = rec
	return nil
}

func (r *memoryRepo) ReceivableNode(ctx context.Context) (coa.Account, error) {
	return coa.Account{ID: 900, Name: "Accounts Receivable", Type: coa.AccountTypeAsset}, nil
}

func (r *memoryRepo) Sales() sales.Tx             { return r.sales }
func (r *memoryRepo) Balances() finacct.BalanceTx { return r.balances }
func (r *memoryRepo) Poster() ledger.TxPoster     { return r.journal }
func (r *memoryRepo) Refs() refnum.Generator      { return r.refs }

func (r *memoryRepo) addAccount(id int64, coaID int64, balance float64) {
	r.balances.accounts[id] = finacct.FinancialAccount{ID: id, Name: fmt.Sprintf("account-%d", id), COAID: coaID, CurrentBalance: balance, IsActive: true}
}

func (r *memoryRepo) addSale(id int64, total, paid float64) {
	r.sales.records[id] = sales.Sale{
		ID: id, ReferenceNo: fmt.Sprintf("SAL-%d", id), TotalAmount: total, AmountPaid: paid,
		PaymentStatus: payshared.StatusFor(paid, total), IsActive: true,
	}
}

var testDate = time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC)

func TestCreateSettlesSaleAndCreditsAccount(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(1, 100, 500)
	repo.addSale(4, 150, 0)
	svc := NewService(repo, nil, nil, nil, nil)

	created, err := svc.Create(context.Background(), Input{
		ReceiptDate: testDate,
		SaleID:      4,
		AccountID:   1,
		Amount:      150,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ReferenceNo)
	require.Equal(t, 650.0, repo.balances.accounts[1].CurrentBalance)

	sale := repo.sales.records[4]
	require.Equal(t, 150.0, sale.AmountPaid)
	require.Equal(t, payshared.StatusPaid, sale.PaymentStatus)

	require.Len(t, repo.journal.entries, 1)
	entry := repo.journal.entries[0]
	require.Equal(t, ledger.RefPaymentReceived, entry.ReferenceType)
	require.Len(t, entry.Lines, 2)
	require.EqualValues(t, 100, entry.Lines[0].COAID)
	require.Equal(t, 150.0, entry.Lines[0].Debit)
	require.EqualValues(t, 900, entry.Lines[1].COAID)
	require.Equal(t, 150.0, entry.Lines[1].Credit)
}

func TestCreateOverpaymentRejected(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(1, 100, 0)
	repo.addSale(4, 150, 100)
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), Input{
		ReceiptDate: testDate,
		SaleID:      4,
		AccountID:   1,
		Amount:      100,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.journal.entries)
}

func TestDeleteRestoresSaleAndBalance(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(1, 100, 500)
	repo.addSale(4, 200, 0)
	svc := NewService(repo, nil, nil, nil, nil)

	created, err := svc.Create(context.Background(), Input{
		ReceiptDate: testDate,
		SaleID:      4,
		AccountID:   1,
		Amount:      80,
	})
	require.NoError(t, err)
	require.Equal(t, payshared.StatusPartial, repo.sales.records[4].PaymentStatus)

	require.NoError(t, svc.Delete(context.Background(), created.ID, 0))
	require.Equal(t, 500.0, repo.balances.accounts[1].CurrentBalance)
	require.Zero(t, repo.sales.records[4].AmountPaid)
	require.Equal(t, payshared.StatusPending, repo.sales.records[4].PaymentStatus)

	require.Len(t, repo.journal.entries, 2)
	mirror := repo.journal.entries[1]
	require.Equal(t, ledger.RefAdjustment, mirror.ReferenceType)
	require.Equal(t, 80.0, mirror.Lines[0].Credit)
	require.Equal(t, 80.0, mirror.Lines[1].Debit)
}

func TestUpdateMovesReceiptBetweenSales(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(1, 100, 0)
	repo.addSale(4, 200, 0)
	repo.addSale(5, 300, 0)
	svc := NewService(repo, nil, nil, nil, nil)

	created, err := svc.Create(context.Background(), Input{
		ReceiptDate: testDate,
		SaleID:      4,
		AccountID:   1,
		Amount:      120,
	})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), created.ID, Input{
		ReceiptDate: testDate,
		SaleID:      5,
		AccountID:   1,
		Amount:      90,
	})
	require.NoError(t, err)
	require.Zero(t, repo.sales.records[4].AmountPaid)
	require.Equal(t, 90.0, repo.sales.records[5].AmountPaid)
	require.Equal(t, 90.0, repo.balances.accounts[1].CurrentBalance)
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
	repo.addAccount(1, 100, 500)
	repo.addSale(4, 150, 0)
	trail := &auditTrail{}
	svc := NewService(repo, nil, trail, nil, nil)

	created, err := svc.Create(context.Background(), Input{ReceiptDate: testDate, SaleID: 4, AccountID: 1, Amount: 150, UserID: 9})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), created.ID, 9))

	require.Len(t, trail.logs, 2)
	require.Equal(t, "income.create", trail.logs[0].Action)
	require.Equal(t, "income.delete", trail.logs[1].Action)
	require.Equal(t, "income", trail.logs[0].Entity)
	require.EqualValues(t, 9, trail.logs[1].ActorID)
}
