package funds

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/treasury-core/internal/fault"
)

func newTestService(t *testing.T) (*Service, *MemoryAccountStore, *MemoryMovementStore) {
	t.Helper()
	accounts := NewMemoryAccountStore()
	movements := NewMemoryMovementStore()
	svc := NewService(accounts, movements, nil, nil)
	return svc, accounts, movements
}

func mustCreateAccount(t *testing.T, svc *Service, name, currency string, opening decimal.Decimal) *Account {
	t.Helper()
	account, err := svc.CreateAccount(context.Background(), CreateAccountRequest{
		Name:           name,
		Kind:           KindBank,
		Currency:       currency,
		OpeningBalance: opening,
		ActorID:        "tester",
	})
	require.NoError(t, err)
	return account
}

func TestCreateAccountValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateAccountRequest
	}{
		{"empty name", CreateAccountRequest{Kind: KindBank, Currency: "ARS"}},
		{"invalid kind", CreateAccountRequest{Name: "Main", Kind: "wallet", Currency: "ARS"}},
		{"short currency", CreateAccountRequest{Name: "Main", Kind: KindBank, Currency: "AR"}},
		{"lowercase currency", CreateAccountRequest{Name: "Main", Kind: KindBank, Currency: "ars"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAccount(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, fault.Validation, fault.KindOf(err))
		})
	}
}

func TestCreateAccountInitialBalanceOverride(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	initial := decimal.NewFromInt(750)
	account, err := svc.CreateAccount(ctx, CreateAccountRequest{
		Name:           "Operating",
		Kind:           KindBank,
		Currency:       "ARS",
		OpeningBalance: decimal.NewFromInt(1000),
		InitialBalance: &initial,
		ActorID:        "tester",
	})
	require.NoError(t, err)
	assert.True(t, account.OpeningBalance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, account.Balance.Equal(initial))
	assert.True(t, account.Active)
}

func TestPostMovementTransferConservesTotal(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	src := mustCreateAccount(t, svc, "Source", "ARS", decimal.NewFromInt(1000))
	dst := mustCreateAccount(t, svc, "Dest", "ARS", decimal.NewFromInt(200))

	movement, err := svc.PostMovement(ctx, PostMovementRequest{
		SourceAccountID: src.ID,
		DestAccountID:   dst.ID,
		Amount:          decimal.NewFromInt(300),
		Category:        CategoryTransfer,
		ActorID:         "tester",
	})
	require.NoError(t, err)
	assert.True(t, movement.IsTransfer())
	assert.Equal(t, "ARS", movement.Currency)

	srcAfter, err := svc.GetAccount(ctx, src.ID)
	require.NoError(t, err)
	dstAfter, err := svc.GetAccount(ctx, dst.ID)
	require.NoError(t, err)

	assert.True(t, srcAfter.Balance.Equal(decimal.NewFromInt(700)))
	assert.True(t, dstAfter.Balance.Equal(decimal.NewFromInt(500)))

	before := src.Balance.Add(dst.Balance)
	after := srcAfter.Balance.Add(dstAfter.Balance)
	assert.True(t, before.Equal(after), "transfer must conserve the combined balance")
}

func TestPostMovementSingleEndpoint(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	account := mustCreateAccount(t, svc, "Main", "USD", decimal.NewFromInt(100))

	_, err := svc.PostMovement(ctx, PostMovementRequest{
		DestAccountID: account.ID,
		Amount:        decimal.NewFromInt(50),
		Category:      CategoryContribution,
		ActorID:       "tester",
	})
	require.NoError(t, err)

	_, err = svc.PostMovement(ctx, PostMovementRequest{
		SourceAccountID: account.ID,
		Amount:          decimal.NewFromInt(30),
		Category:        CategoryInvestorWithdrawal,
		ActorID:         "tester",
	})
	require.NoError(t, err)

	after, err := svc.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, after.Balance.Equal(decimal.NewFromInt(120)))
}

func TestPostMovementValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	account := mustCreateAccount(t, svc, "Main", "ARS", decimal.Zero)

	tests := []struct {
		name string
		req  PostMovementRequest
	}{
		{"zero amount", PostMovementRequest{DestAccountID: account.ID, Category: CategoryOther}},
		{"negative amount", PostMovementRequest{DestAccountID: account.ID, Amount: decimal.NewFromInt(-5), Category: CategoryOther}},
		{"no endpoints", PostMovementRequest{Amount: decimal.NewFromInt(10), Category: CategoryOther}},
		{"same endpoints", PostMovementRequest{SourceAccountID: account.ID, DestAccountID: account.ID, Amount: decimal.NewFromInt(10), Category: CategoryOther}},
		{"bad category", PostMovementRequest{DestAccountID: account.ID, Amount: decimal.NewFromInt(10), Category: "bribe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PostMovement(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, fault.Validation, fault.KindOf(err))
		})
	}
}

func TestPostMovementUnknownAccount(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.PostMovement(context.Background(), PostMovementRequest{
		DestAccountID: "missing",
		Amount:        decimal.NewFromInt(10),
		Category:      CategoryOther,
	})
	require.Error(t, err)
	assert.Equal(t, fault.NotFound, fault.KindOf(err))
}

func TestReverseMovementRoundTrip(t *testing.T) {
	svc, _, movements := newTestService(t)
	ctx := context.Background()

	src := mustCreateAccount(t, svc, "Source", "ARS", decimal.NewFromInt(1000))
	dst := mustCreateAccount(t, svc, "Dest", "ARS", decimal.NewFromInt(200))

	movement, err := svc.PostMovement(ctx, PostMovementRequest{
		SourceAccountID: src.ID,
		DestAccountID:   dst.ID,
		Amount:          decimal.NewFromInt(450),
		Category:        CategoryTransfer,
		ActorID:         "tester",
	})
	require.NoError(t, err)

	require.NoError(t, svc.ReverseMovement(ctx, movement.ID, "tester"))

	srcAfter, err := svc.GetAccount(ctx, src.ID)
	require.NoError(t, err)
	dstAfter, err := svc.GetAccount(ctx, dst.ID)
	require.NoError(t, err)

	assert.True(t, srcAfter.Balance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, dstAfter.Balance.Equal(decimal.NewFromInt(200)))

	_, err = movements.Get(ctx, movement.ID)
	assert.Equal(t, fault.NotFound, fault.KindOf(err))
}

func TestDeleteMovementRemovesExchangePair(t *testing.T) {
	svc, _, movements := newTestService(t)
	ctx := context.Background()

	ars := mustCreateAccount(t, svc, "Pesos", "ARS", decimal.NewFromInt(200000))
	usd := mustCreateAccount(t, svc, "Dollars", "USD", decimal.Zero)

	out, in, err := svc.PostExchangePair(ctx, ExchangePairRequest{
		SellAccountID: ars.ID,
		BuyAccountID:  usd.ID,
		SellAmount:    decimal.NewFromInt(100000),
		BuyAmount:     decimal.RequireFromString("95.24"),
		ActorID:       "tester",
	})
	require.NoError(t, err)
	require.Equal(t, out.ExchangeID, in.ExchangeID)
	require.NotEmpty(t, out.ExchangeID)

	// Deleting either leg must remove both and revert both balances.
	require.NoError(t, svc.DeleteMovement(ctx, in.ID, "tester"))

	_, err = movements.Get(ctx, out.ID)
	assert.Equal(t, fault.NotFound, fault.KindOf(err))
	_, err = movements.Get(ctx, in.ID)
	assert.Equal(t, fault.NotFound, fault.KindOf(err))

	arsAfter, err := svc.GetAccount(ctx, ars.ID)
	require.NoError(t, err)
	usdAfter, err := svc.GetAccount(ctx, usd.ID)
	require.NoError(t, err)
	assert.True(t, arsAfter.Balance.Equal(decimal.NewFromInt(200000)))
	assert.True(t, usdAfter.Balance.Equal(decimal.Zero))
}

func TestPostMovementCompensatesOnCreditFailure(t *testing.T) {
	svc, accounts, _ := newTestService(t)
	ctx := context.Background()

	src := mustCreateAccount(t, svc, "Source", "ARS", decimal.NewFromInt(1000))
	dst := mustCreateAccount(t, svc, "Dest", "ARS", decimal.NewFromInt(200))

	accounts.UpdateHook = func(a *Account) error {
		if a.ID == dst.ID {
			return errors.New("write failed")
		}
		return nil
	}

	_, err := svc.PostMovement(ctx, PostMovementRequest{
		SourceAccountID: src.ID,
		DestAccountID:   dst.ID,
		Amount:          decimal.NewFromInt(300),
		Category:        CategoryTransfer,
		ActorID:         "tester",
	})
	require.Error(t, err)
	accounts.UpdateHook = nil

	srcAfter, err := svc.GetAccount(ctx, src.ID)
	require.NoError(t, err)
	dstAfter, err := svc.GetAccount(ctx, dst.ID)
	require.NoError(t, err)
	assert.True(t, srcAfter.Balance.Equal(decimal.NewFromInt(1000)), "debit must be compensated")
	assert.True(t, dstAfter.Balance.Equal(decimal.NewFromInt(200)))
}

func TestPostMovementCompensatesOnRecordFailure(t *testing.T) {
	svc, _, movements := newTestService(t)
	ctx := context.Background()

	src := mustCreateAccount(t, svc, "Source", "ARS", decimal.NewFromInt(1000))
	dst := mustCreateAccount(t, svc, "Dest", "ARS", decimal.NewFromInt(200))

	movements.InsertHook = func(*FundMovement) error {
		return errors.New("write failed")
	}

	_, err := svc.PostMovement(ctx, PostMovementRequest{
		SourceAccountID: src.ID,
		DestAccountID:   dst.ID,
		Amount:          decimal.NewFromInt(300),
		Category:        CategoryTransfer,
		ActorID:         "tester",
	})
	require.Error(t, err)
	movements.InsertHook = nil

	srcAfter, err := svc.GetAccount(ctx, src.ID)
	require.NoError(t, err)
	dstAfter, err := svc.GetAccount(ctx, dst.ID)
	require.NoError(t, err)
	assert.True(t, srcAfter.Balance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, dstAfter.Balance.Equal(decimal.NewFromInt(200)))
}

func TestDeleteAccountBlockedByMovements(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	account := mustCreateAccount(t, svc, "Main", "ARS", decimal.NewFromInt(100))
	_, err := svc.PostMovement(ctx, PostMovementRequest{
		DestAccountID: account.ID,
		Amount:        decimal.NewFromInt(10),
		Category:      CategoryContribution,
		ActorID:       "tester",
	})
	require.NoError(t, err)

	err = svc.DeleteAccount(ctx, account.ID, "tester")
	require.Error(t, err)
	assert.Equal(t, fault.InvalidState, fault.KindOf(err))

	empty := mustCreateAccount(t, svc, "Empty", "ARS", decimal.Zero)
	require.NoError(t, svc.DeleteAccount(ctx, empty.ID, "tester"))
}

func TestValidateConsistencyDetectsDrift(t *testing.T) {
	svc, accounts, _ := newTestService(t)
	ctx := context.Background()

	clean := mustCreateAccount(t, svc, "Clean", "ARS", decimal.NewFromInt(500))
	dirty := mustCreateAccount(t, svc, "Dirty", "ARS", decimal.NewFromInt(500))

	_, err := svc.PostMovement(ctx, PostMovementRequest{
		SourceAccountID: clean.ID,
		DestAccountID:   dirty.ID,
		Amount:          decimal.NewFromInt(100),
		Category:        CategoryTransfer,
		ActorID:         "tester",
	})
	require.NoError(t, err)

	// Corrupt the stored balance behind the service's back.
	corrupted, err := accounts.Get(ctx, dirty.ID)
	require.NoError(t, err)
	corrupted.Balance = corrupted.Balance.Add(decimal.NewFromInt(1))
	require.NoError(t, accounts.Update(ctx, corrupted))

	results, err := svc.ValidateConsistency(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]ConsistencyResult{}
	for _, r := range results {
		byID[r.AccountID] = r
	}
	assert.True(t, byID[clean.ID].Consistent)
	assert.False(t, byID[dirty.ID].Consistent)
	assert.True(t, byID[dirty.ID].Expected.Equal(decimal.NewFromInt(600)))
	assert.True(t, byID[dirty.ID].Actual.Equal(decimal.NewFromInt(601)))
}

func TestUpdateAccountMutableFieldsOnly(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	account := mustCreateAccount(t, svc, "Old Name", "ARS", decimal.NewFromInt(100))

	name := "New Name"
	inactive := false
	updated, err := svc.UpdateAccount(ctx, account.ID, UpdateAccountRequest{
		Name:    &name,
		Active:  &inactive,
		ActorID: "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.False(t, updated.Active)
	assert.True(t, updated.Balance.Equal(account.Balance))
}
