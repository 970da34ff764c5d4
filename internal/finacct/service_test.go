package finacct

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halisi-erp/halisi-erp/internal/coa"
	"github.com/halisi-erp/halisi-erp/internal/ledger"
	"github.com/halisi-erp/halisi-erp/internal/shared"
)

type memoryPoster struct {
	entries []ledger.PostingInput
}

func (p *memoryPoster) Post(ctx context.Context, in ledger.PostingInput) (ledger.JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return ledger.JournalEntry{}, err
	}
	p.entries = append(p.entries, in)
	return ledger.JournalEntry{ID: int64(len(p.entries))}, nil
}

func (p *memoryPoster) ReverseLatest(ctx context.Context, in ledger.ReversalInput) (ledger.JournalEntry, error) {
	return ledger.JournalEntry{}, errors.New("not implemented")
}

type memoryRepo struct {
	accounts map[int64]FinancialAccount
	nodes    map[int64]coa.Account
	nextID   int64
	poster   *memoryPoster
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		accounts: map[int64]FinancialAccount{},
		nodes:    map[int64]coa.Account{},
		poster:   &memoryPoster{},
	}
}

func (r *memoryRepo) List(ctx context.Context) ([]FinancialAccount, error) {
	var out []FinancialAccount
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (FinancialAccount, error) {
	a, ok := r.accounts[id]
	if !ok {
		return FinancialAccount{}, shared.ErrNotFound
	}
	return a, nil
}

func (r *memoryRepo) Balances(ctx context.Context) ([]AccountBalance, error) {
	var out []AccountBalance
	for _, a := range r.accounts {
		if !a.IsActive {
			continue
		}
		out = append(out, AccountBalance{ID: a.ID, Name: a.Name, AccountType: a.AccountType, CurrentBalance: a.CurrentBalance})
	}
	return out, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) GetForUpdate(ctx context.Context, id int64) (FinancialAccount, error) {
	return r.Get(ctx, id)
}

func (r *memoryRepo) Credit(ctx context.Context, id int64, amount float64) (FinancialAccount, error) {
	a, err := r.Get(ctx, id)
	if err != nil {
		return FinancialAccount{}, err
	}
	a.CurrentBalance = shared.Round2(a.CurrentBalance + amount)
	r.accounts[id] = a
	return a, nil
}

func (r *memoryRepo) Debit(ctx context.Context, id int64, amount float64) (FinancialAccount, error) {
	a, err := r.Get(ctx, id)
	if err != nil {
		return FinancialAccount{}, err
	}
	if a.CurrentBalance < amount {
		return FinancialAccount{}, &InsufficientFundsError{AccountName: a.Name, Available: a.CurrentBalance, Required: amount}
	}
	a.CurrentBalance = shared.Round2(a.CurrentBalance - amount)
	r.accounts[id] = a
	return a, nil
}

func (r *memoryRepo) Insert(ctx context.Context, a FinancialAccount) (FinancialAccount, error) {
	r.nextID++
	a.ID = r.nextID
	a.IsActive = true
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.accounts[a.ID] = a
	return a, nil
}

func (r *memoryRepo) SetActive(ctx context.Context, id int64, active bool) error {
	a, ok := r.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.IsActive = active
	r.accounts[id] = a
	return nil
}

func (r *memoryRepo) CountActiveByCOA(ctx context.Context, coaID int64) (int, error) {
	count := 0
	for _, a := range r.accounts {
		if a.IsActive && a.COAID == coaID {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepo) GetChartNode(ctx context.Context, id int64) (coa.Account, error) {
	node, ok := r.nodes[id]
	if !ok {
		return coa.Account{}, shared.ErrNotFound
	}
	return node, nil
}

func (r *memoryRepo) GetDefaultChartNode(ctx context.Context, t coa.AccountType) (coa.Account, error) {
	for _, node := range r.nodes {
		if node.Type == t && node.IsDefault && node.IsActive {
			return node, nil
		}
	}
	return coa.Account{}, shared.ErrNotFound
}

func (r *memoryRepo) Poster() ledger.TxPoster {
	return r.poster
}

func (r *memoryRepo) addNode(id int64, t coa.AccountType, isDefault bool) coa.Account {
	node := coa.Account{ID: id, Name: fmt.Sprintf("node-%d", id), Type: t, IsDefault: isDefault, IsActive: true}
	r.nodes[id] = node
	return node
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, nil, nil)
}

func TestOpenPostsOpeningEntry(t *testing.T) {
	repo := newMemoryRepo()
	repo.addNode(10, coa.AccountTypeAsset, false)
	repo.addNode(30, coa.AccountTypeEquity, true)
	svc := newTestService(repo)

	account, err := svc.Open(context.Background(), OpenInput{
		Name:           "Main Bank",
		AccountType:    string(AccountTypeBank),
		COAID:          10,
		OpeningBalance: 1000,
	})
	require.NoError(t, err)
	require.Equal(t, 1000.0, account.CurrentBalance)

	require.Len(t, repo.poster.entries, 1)
	entry := repo.poster.entries[0]
	require.Equal(t, ledger.RefAccountOpening, entry.ReferenceType)
	require.Equal(t, SourceModule, entry.SourceModule)
	require.Equal(t, account.ID, *entry.ReferenceID)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, 1000.0, entry.Lines[0].Debit)
	require.EqualValues(t, 10, entry.Lines[0].COAID)
	require.Equal(t, 1000.0, entry.Lines[1].Credit)
	require.EqualValues(t, 30, entry.Lines[1].COAID)
}

func TestOpenZeroBalanceSkipsJournal(t *testing.T) {
	repo := newMemoryRepo()
	repo.addNode(10, coa.AccountTypeAsset, false)
	svc := newTestService(repo)

	account, err := svc.Open(context.Background(), OpenInput{
		Name:        "Petty Cash",
		AccountType: string(AccountTypeCash),
		COAID:       10,
	})
	require.NoError(t, err)
	require.Zero(t, account.CurrentBalance)
	require.Empty(t, repo.poster.entries)
}

func TestOpenRejectsNonAssetNode(t *testing.T) {
	repo := newMemoryRepo()
	repo.addNode(20, coa.AccountTypeLiability, false)
	svc := newTestService(repo)

	_, err := svc.Open(context.Background(), OpenInput{
		Name:        "Wrong Node",
		AccountType: string(AccountTypeBank),
		COAID:       20,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestOpenRejectsAlreadyLinkedNode(t *testing.T) {
	repo := newMemoryRepo()
	repo.addNode(10, coa.AccountTypeAsset, false)
	svc := newTestService(repo)

	_, err := svc.Open(context.Background(), OpenInput{Name: "First", AccountType: string(AccountTypeBank), COAID: 10})
	require.NoError(t, err)
	_, err = svc.Open(context.Background(), OpenInput{Name: "Second", AccountType: string(AccountTypeBank), COAID: 10})
	require.ErrorIs(t, err, shared.ErrInvariantViolation)
}

func TestDeactivateRefusesNonZeroBalance(t *testing.T) {
	repo := newMemoryRepo()
	repo.addNode(10, coa.AccountTypeAsset, false)
	repo.addNode(30, coa.AccountTypeEquity, true)
	svc := newTestService(repo)

	account, err := svc.Open(context.Background(), OpenInput{
		Name:           "Main Bank",
		AccountType:    string(AccountTypeBank),
		COAID:          10,
		OpeningBalance: 50,
	})
	require.NoError(t, err)

	err = svc.Deactivate(context.Background(), account.ID)
	require.ErrorIs(t, err, shared.ErrInvariantViolation)

	_, err = repo.Debit(context.Background(), account.ID, 50)
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(context.Background(), account.ID))

	got, err := svc.Get(context.Background(), account.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}

func TestDebitInsufficientFunds(t *testing.T) {
	repo := newMemoryRepo()
	repo.addNode(10, coa.AccountTypeAsset, false)
	svc := newTestService(repo)

	account, err := svc.Open(context.Background(), OpenInput{Name: "Till", AccountType: string(AccountTypeCash), COAID: 10})
	require.NoError(t, err)

	_, err = repo.Debit(context.Background(), account.ID, 25)
	require.ErrorIs(t, err, shared.ErrInsufficientFunds)
	var ife *InsufficientFundsError
	require.ErrorAs(t, err, &ife)
	require.Equal(t, "Till", ife.AccountName)
	require.Equal(t, 25.0, ife.Required)
}
