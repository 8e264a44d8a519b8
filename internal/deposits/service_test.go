package deposits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/treasury-core/internal/fault"
	"github.com/example/treasury-core/internal/funds"
)

type fixture struct {
	svc       *Service
	deposits  *MemoryDepositStore
	movements *MemoryDepositMovementStore
	schedule  *MemoryScheduleStore
	ledger    *funds.Service
	clock     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		deposits:  NewMemoryDepositStore(),
		movements: NewMemoryDepositMovementStore(),
		schedule:  NewMemoryScheduleStore(),
		ledger:    funds.NewService(funds.NewMemoryAccountStore(), funds.NewMemoryMovementStore(), nil, nil),
		clock:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.deposits, f.movements, f.schedule, f.ledger, nil, nil)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *fixture) createAccount(t *testing.T, name string, balance decimal.Decimal) *funds.Account {
	t.Helper()
	account, err := f.ledger.CreateAccount(context.Background(), funds.CreateAccountRequest{
		Name:           name,
		Kind:           funds.KindBank,
		Currency:       "ARS",
		OpeningBalance: balance,
		ActorID:        "tester",
	})
	require.NoError(t, err)
	return account
}

func (f *fixture) baseRequest() CreateDepositRequest {
	return CreateDepositRequest{
		Name:          "Plazo Fijo 30d",
		Institution:   "Banco Nacional",
		Currency:      "ARS",
		Principal:     decimal.NewFromInt(100000),
		AnnualRatePct: decimal.NewFromInt(36),
		Method:        Simple,
		Frequency:     AtMaturity,
		Disposition:   Payout,
		TermDays:      30,
		InvestorID:    "inv-1",
		ActorID:       "tester",
	}
}

func TestCreateDepositProjectsSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.baseRequest()
	req.AutoRenew = true
	req.Observations = "renews unless instructed otherwise"

	deposit, err := f.svc.CreateDeposit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StateActive, deposit.State)
	assert.Equal(t, f.clock.AddDate(0, 0, 30), deposit.MaturityDate)
	assert.True(t, deposit.Principal.Equal(decimal.NewFromInt(100000)))
	assert.True(t, deposit.AutoRenew)

	stored, err := f.deposits.Get(ctx, deposit.ID)
	require.NoError(t, err)
	assert.True(t, stored.AutoRenew)
	assert.Equal(t, "renews unless instructed otherwise", stored.Observations)

	entries, err := f.svc.GetSchedule(ctx, deposit.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2958.90", entries[0].EstimatedInterest.StringFixed(2))
	assert.Equal(t, EntryPending, entries[0].State)
}

func TestCreateDepositValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mutations := []struct {
		name   string
		mutate func(*CreateDepositRequest)
	}{
		{"empty name", func(r *CreateDepositRequest) { r.Name = " " }},
		{"missing investor", func(r *CreateDepositRequest) { r.InvestorID = "" }},
		{"bad currency", func(r *CreateDepositRequest) { r.Currency = "PESOS" }},
		{"zero principal", func(r *CreateDepositRequest) { r.Principal = decimal.Zero }},
		{"negative rate", func(r *CreateDepositRequest) { r.AnnualRatePct = decimal.NewFromInt(-1) }},
		{"bad method", func(r *CreateDepositRequest) { r.Method = "hyperbolic" }},
		{"bad frequency", func(r *CreateDepositRequest) { r.Frequency = "weekly" }},
		{"bad disposition", func(r *CreateDepositRequest) { r.Disposition = "burn" }},
		{"zero term", func(r *CreateDepositRequest) { r.TermDays = 0 }},
	}

	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			req := f.baseRequest()
			tt.mutate(&req)
			_, err := f.svc.CreateDeposit(ctx, req)
			require.Error(t, err)
			assert.Equal(t, fault.Validation, fault.KindOf(err))
		})
	}
}

func TestCreateDepositDebitsFundingAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	account := f.createAccount(t, "Operating", decimal.NewFromInt(150000))
	req := f.baseRequest()
	req.FundingAccountID = account.ID

	_, err := f.svc.CreateDeposit(ctx, req)
	require.NoError(t, err)

	after, err := f.ledger.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, after.Balance.Equal(decimal.NewFromInt(50000)))
}

func TestCreateDepositInsufficientFunding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	account := f.createAccount(t, "Operating", decimal.NewFromInt(50000))
	req := f.baseRequest()
	req.FundingAccountID = account.ID

	_, err := f.svc.CreateDeposit(ctx, req)
	require.Error(t, err)
	assert.Equal(t, fault.InsufficientFunds, fault.KindOf(err))

	after, err := f.ledger.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, after.Balance.Equal(decimal.NewFromInt(50000)))
}

func TestCreateDepositCompensatesOnScheduleFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	account := f.createAccount(t, "Operating", decimal.NewFromInt(150000))
	req := f.baseRequest()
	req.FundingAccountID = account.ID

	f.schedule.InsertHook = func(*ScheduleEntry) error { return errors.New("write failed") }
	_, err := f.svc.CreateDeposit(ctx, req)
	require.Error(t, err)
	f.schedule.InsertHook = nil

	// The funding debit was reversed and no deposit survives.
	after, err := f.ledger.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, after.Balance.Equal(decimal.NewFromInt(150000)))

	deposits, err := f.svc.ListDeposits(ctx, DepositFilter{})
	require.NoError(t, err)
	assert.Empty(t, deposits)
}

func TestDepositMaturesByClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deposit, err := f.svc.CreateDeposit(ctx, f.baseRequest())
	require.NoError(t, err)

	got, err := f.svc.GetDeposit(ctx, deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, StateActive, got.State)

	f.advance(31 * 24 * time.Hour)
	got, err = f.svc.GetDeposit(ctx, deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, StateMatured, got.State)
}

func TestRegisterTopUpRequiresActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deposit, err := f.svc.CreateDeposit(ctx, f.baseRequest())
	require.NoError(t, err)

	topUpDate := f.clock.AddDate(0, 0, 5)
	movement, err := f.svc.RegisterTopUp(ctx, TopUpRequest{
		DepositID: deposit.ID,
		Amount:    decimal.NewFromInt(20000),
		Date:      topUpDate,
		ActorID:   "tester",
	})
	require.NoError(t, err)
	assert.True(t, movement.PrincipalBefore.Equal(decimal.NewFromInt(100000)))
	assert.True(t, movement.PrincipalAfter.Equal(decimal.NewFromInt(120000)))
	assert.Equal(t, topUpDate, movement.Date)

	f.advance(31 * 24 * time.Hour)
	_, err = f.svc.RegisterTopUp(ctx, TopUpRequest{
		DepositID: deposit.ID,
		Amount:    decimal.NewFromInt(1000),
		ActorID:   "tester",
	})
	require.Error(t, err)
	assert.Equal(t, fault.InvalidState, fault.KindOf(err))
}

func TestRegisterWithdrawalRequiresMaturity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payout := f.createAccount(t, "Payout", decimal.Zero)
	req := f.baseRequest()
	req.PayoutAccountID = payout.ID

	deposit, err := f.svc.CreateDeposit(ctx, req)
	require.NoError(t, err)

	_, err = f.svc.RegisterWithdrawal(ctx, WithdrawalRequest{DepositID: deposit.ID, Amount: decimal.NewFromInt(1000), ActorID: "tester"})
	require.Error(t, err)
	assert.Equal(t, fault.InvalidState, fault.KindOf(err))

	f.advance(31 * 24 * time.Hour)

	_, err = f.svc.RegisterWithdrawal(ctx, WithdrawalRequest{DepositID: deposit.ID, Amount: decimal.NewFromInt(200000), ActorID: "tester"})
	require.Error(t, err)
	assert.Equal(t, fault.InsufficientFunds, fault.KindOf(err))

	movement, err := f.svc.RegisterWithdrawal(ctx, WithdrawalRequest{DepositID: deposit.ID, Amount: decimal.NewFromInt(40000), ActorID: "tester"})
	require.NoError(t, err)
	assert.True(t, movement.PrincipalAfter.Equal(decimal.NewFromInt(60000)))
	assert.Equal(t, f.clock, movement.Date)

	account, err := f.ledger.GetAccount(ctx, payout.ID)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(40000)))

	// Withdrawing the rest closes the deposit.
	_, err = f.svc.RegisterWithdrawal(ctx, WithdrawalRequest{DepositID: deposit.ID, Amount: decimal.NewFromInt(60000), ActorID: "tester"})
	require.NoError(t, err)

	got, err := f.svc.GetDeposit(ctx, deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, got.State)
	assert.True(t, got.Principal.IsZero())
}

func TestPayInterestCreditsPayoutAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payout := f.createAccount(t, "Payout", decimal.Zero)
	req := f.baseRequest()
	req.PayoutAccountID = payout.ID

	deposit, err := f.svc.CreateDeposit(ctx, req)
	require.NoError(t, err)

	entries, err := f.svc.GetSchedule(ctx, deposit.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry, err := f.svc.PayInterest(ctx, SettleInterestRequest{DepositID: deposit.ID, EntryID: entries[0].ID, ActorID: "tester"})
	require.NoError(t, err)
	assert.Equal(t, EntryPaid, entry.State)
	assert.Equal(t, "2958.90", entry.PaidInterest.StringFixed(2))
	require.NotNil(t, entry.SettledAt)

	account, err := f.ledger.GetAccount(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, "2958.90", account.Balance.StringFixed(2))

	// Principal is untouched by a payout.
	got, err := f.svc.GetDeposit(ctx, deposit.ID)
	require.NoError(t, err)
	assert.True(t, got.Principal.Equal(decimal.NewFromInt(100000)))

	// An entry settles once.
	_, err = f.svc.PayInterest(ctx, SettleInterestRequest{DepositID: deposit.ID, EntryID: entries[0].ID, ActorID: "tester"})
	require.Error(t, err)
	assert.Equal(t, fault.InvalidState, fault.KindOf(err))
}

func TestPayInterestOverridesAmountAndDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payout := f.createAccount(t, "Payout", decimal.Zero)
	req := f.baseRequest()
	req.PayoutAccountID = payout.ID

	deposit, err := f.svc.CreateDeposit(ctx, req)
	require.NoError(t, err)
	entries, err := f.svc.GetSchedule(ctx, deposit.ID)
	require.NoError(t, err)

	settleDate := f.clock.AddDate(0, 0, 30)
	entry, err := f.svc.PayInterest(ctx, SettleInterestRequest{
		DepositID: deposit.ID,
		EntryID:   entries[0].ID,
		Amount:    decimal.RequireFromString("3000.00"),
		Date:      settleDate,
		ActorID:   "tester",
	})
	require.NoError(t, err)

	// The settled amount replaces the estimate; the estimate itself survives.
	assert.Equal(t, "3000.00", entry.PaidInterest.StringFixed(2))
	assert.Equal(t, "2958.90", entry.EstimatedInterest.StringFixed(2))
	require.NotNil(t, entry.SettledAt)
	assert.Equal(t, settleDate, *entry.SettledAt)

	account, err := f.ledger.GetAccount(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, "3000.00", account.Balance.StringFixed(2))

	movements, err := f.svc.ListMovements(ctx, deposit.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, settleDate, movements[0].Date)
}

func TestPayInterestRejectsCapitalizingDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.baseRequest()
	req.Disposition = Capitalize

	deposit, err := f.svc.CreateDeposit(ctx, req)
	require.NoError(t, err)
	entries, err := f.svc.GetSchedule(ctx, deposit.ID)
	require.NoError(t, err)

	_, err = f.svc.PayInterest(ctx, SettleInterestRequest{DepositID: deposit.ID, EntryID: entries[0].ID, ActorID: "tester"})
	require.Error(t, err)
	assert.Equal(t, fault.InvalidState, fault.KindOf(err))
}

func TestCapitalizeInterestGrowsPrincipal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.baseRequest()
	req.Disposition = Capitalize

	deposit, err := f.svc.CreateDeposit(ctx, req)
	require.NoError(t, err)
	entries, err := f.svc.GetSchedule(ctx, deposit.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry, err := f.svc.CapitalizeInterest(ctx, SettleInterestRequest{DepositID: deposit.ID, EntryID: entries[0].ID, ActorID: "tester"})
	require.NoError(t, err)
	assert.Equal(t, EntryCapitalized, entry.State)

	got, err := f.svc.GetDeposit(ctx, deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, "102958.90", got.Principal.StringFixed(2))

	movements, err := f.svc.ListMovements(ctx, deposit.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, InterestCapitalization, movements[0].Kind)
	assert.Empty(t, movements[0].FundMovementID)
}

func TestCancelDepositReturnsPrincipalAndSkipsSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payout := f.createAccount(t, "Payout", decimal.Zero)
	req := f.baseRequest()
	req.Principal = decimal.NewFromInt(50000)
	req.Frequency = Monthly
	req.TermDays = 90
	req.PayoutAccountID = payout.ID

	deposit, err := f.svc.CreateDeposit(ctx, req)
	require.NoError(t, err)

	cancelled, err := f.svc.CancelDeposit(ctx, deposit.ID, "investor requested early exit", "tester")
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, cancelled.State)
	assert.True(t, cancelled.Principal.IsZero())

	account, err := f.ledger.GetAccount(ctx, payout.ID)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(50000)))

	entries, err := f.svc.GetSchedule(ctx, deposit.ID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, EntrySkipped, e.State)
	}

	movements, err := f.svc.ListMovements(ctx, deposit.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, Withdrawal, movements[0].Kind)
	assert.True(t, movements[0].PrincipalAfter.IsZero())
	assert.Equal(t, "early cancellation: investor requested early exit", movements[0].Description)

	_, err = f.svc.CancelDeposit(ctx, deposit.ID, "", "tester")
	require.Error(t, err)
	assert.Equal(t, fault.InvalidState, fault.KindOf(err))
}

func TestCancelSettledEntriesStaySettled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payout := f.createAccount(t, "Payout", decimal.Zero)
	req := f.baseRequest()
	req.Frequency = Monthly
	req.TermDays = 90
	req.PayoutAccountID = payout.ID

	deposit, err := f.svc.CreateDeposit(ctx, req)
	require.NoError(t, err)

	entries, err := f.svc.GetSchedule(ctx, deposit.ID)
	require.NoError(t, err)
	require.True(t, len(entries) >= 2)

	_, err = f.svc.PayInterest(ctx, SettleInterestRequest{DepositID: deposit.ID, EntryID: entries[0].ID, ActorID: "tester"})
	require.NoError(t, err)

	_, err = f.svc.CancelDeposit(ctx, deposit.ID, "", "tester")
	require.NoError(t, err)

	entries, err = f.svc.GetSchedule(ctx, deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, EntryPaid, entries[0].State)
	for _, e := range entries[1:] {
		assert.Equal(t, EntrySkipped, e.State)
	}
}

func TestOverdueEntryIsDerived(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deposit, err := f.svc.CreateDeposit(ctx, f.baseRequest())
	require.NoError(t, err)

	f.advance(40 * 24 * time.Hour)

	entries, err := f.svc.GetSchedule(ctx, deposit.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EntryOverdue, entries[0].State)

	// The stored row is still pending.
	stored, err := f.schedule.Get(ctx, entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, EntryPending, stored.State)
}
