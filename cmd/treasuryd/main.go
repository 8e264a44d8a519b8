package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/treasury-core/internal/config"
	"github.com/example/treasury-core/internal/deposits"
	"github.com/example/treasury-core/internal/funds"
	"github.com/example/treasury-core/internal/pettycash"
	"github.com/example/treasury-core/pkg/audit"
)

// treasuryd wires the treasury services against PostgreSQL and runs the
// consistency report: every account balance recomputed from its movement
// history, plus the petty-cash control matrix. It exits non-zero when any
// account has drifted.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	var recorder audit.Recorder
	if cfg.AuditDB != "" {
		sqliteRecorder, err := audit.OpenSQLite(cfg.AuditDB)
		if err != nil {
			logger.Error("failed to open audit store", "path", cfg.AuditDB, "error", err)
			os.Exit(1)
		}
		defer sqliteRecorder.Close()
		recorder = sqliteRecorder
	} else {
		recorder = audit.NewChainRecorder()
	}

	fundService := funds.NewService(
		funds.NewPostgresAccountStore(pool),
		funds.NewPostgresMovementStore(pool),
		recorder,
		logger,
	)
	cashService := pettycash.NewService(
		pettycash.NewPostgresBoxStore(pool),
		pettycash.NewPostgresCashMovementStore(pool),
		pettycash.NewPostgresReimbursementStore(pool),
		pettycash.NewPostgresClosingStore(pool),
		fundService,
		recorder,
		logger,
	)
	depositService := deposits.NewService(
		deposits.NewPostgresDepositStore(pool),
		deposits.NewPostgresDepositMovementStore(pool),
		deposits.NewPostgresScheduleStore(pool),
		fundService,
		recorder,
		logger,
	)

	logger.Info("running consistency report", "environment", cfg.Environment)

	results, err := fundService.ValidateConsistency(ctx)
	if err != nil {
		logger.Error("consistency validation failed", "error", err)
		os.Exit(1)
	}

	drifted := 0
	for _, r := range results {
		if r.Consistent {
			continue
		}
		drifted++
		logger.Warn("account balance drift",
			"account_id", r.AccountID,
			"name", r.Name,
			"expected", r.Expected.StringFixed(2),
			"actual", r.Actual.StringFixed(2),
		)
	}

	rows, err := cashService.ControlMatrix(ctx, pettycash.BoxFilter{})
	if err != nil {
		logger.Error("control matrix failed", "error", err)
		os.Exit(1)
	}
	for _, row := range rows {
		logger.Info("cash box control",
			"box_id", row.BoxID,
			"name", row.Name,
			"level", row.Level,
			"currency", row.Currency,
			"opening_balance", row.OpeningBalance.StringFixed(2),
			"total_funded", row.TotalFunded.StringFixed(2),
			"total_spent", row.TotalSpent.StringFixed(2),
			"balance", row.Balance.StringFixed(2),
		)
	}

	active, err := depositService.ListDeposits(ctx, deposits.DepositFilter{State: deposits.StateActive})
	if err != nil {
		logger.Error("deposit listing failed", "error", err)
		os.Exit(1)
	}
	overdue := 0
	for _, d := range active {
		entries, err := depositService.GetSchedule(ctx, d.ID)
		if err != nil {
			logger.Error("schedule listing failed", "deposit_id", d.ID, "error", err)
			os.Exit(1)
		}
		for _, e := range entries {
			if e.State != deposits.EntryOverdue {
				continue
			}
			overdue++
			logger.Warn("overdue interest entry",
				"deposit_id", d.ID,
				"deposit", d.Name,
				"seq", e.Seq,
				"due", e.Date.Format("2006-01-02"),
				"estimated_interest", e.EstimatedInterest.StringFixed(2),
			)
		}
	}

	if drifted > 0 {
		logger.Error("consistency report finished with drift", "accounts_checked", len(results), "drifted", drifted)
		os.Exit(1)
	}
	logger.Info("consistency report finished",
		"accounts_checked", len(results),
		"boxes_checked", len(rows),
		"deposits_checked", len(active),
		"overdue_entries", overdue,
	)
}
