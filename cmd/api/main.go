package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/gigcredit/internal/config"
	"github.com/Dan9191/gigcredit/internal/eligibility"
	"github.com/Dan9191/gigcredit/internal/handler"
	"github.com/Dan9191/gigcredit/internal/integrations/settlement"
	"github.com/Dan9191/gigcredit/internal/issuer"
	"github.com/Dan9191/gigcredit/internal/ledger"
	"github.com/Dan9191/gigcredit/internal/middleware"
	"github.com/Dan9191/gigcredit/internal/repository"
	"github.com/Dan9191/gigcredit/internal/scheduler"
	"github.com/Dan9191/gigcredit/internal/scoring"
	"github.com/Dan9191/gigcredit/internal/service"
	"github.com/Dan9191/gigcredit/internal/utils"
	"github.com/Dan9191/gigcredit/internal/utils/email"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	sealer, err := utils.NewLedgerSealer([]byte(cfg.LedgerSealKey))
	if err != nil {
		logger.Fatalf("Invalid ledger seal key: %v", err)
	}

	store, err := ledger.NewStore(cfg.PoolInitialBalance)
	if err != nil {
		logger.Fatalf("Failed to create ledger: %v", err)
	}

	// Initialize database
	var journal service.Journal
	if cfg.DBConn != "" {
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("Failed to ping database: %v", err)
		}

		repo := repository.NewRepository(db)
		if err := restoreLedger(context.Background(), repo, store, sealer, cfg, logger); err != nil {
			logger.Fatalf("Failed to restore ledger: %v", err)
		}
		journal = repo
	} else {
		logger.Warn("DB_CONN not set, ledger is kept in memory only")
	}

	// Initialize layers
	engine := scoring.NewEngine(scoring.Policy{
		EligibleScore: cfg.MinCreditScore,
		MaxLoanCap:    cfg.MaxLoanCap,
		IncomeShare:   scoring.DefaultPolicy().IncomeShare,
	})
	gate := eligibility.NewGate(eligibility.Rules{
		MinScore:  cfg.MinCreditScore,
		Cooldown:  cfg.Cooldown,
		MaxAmount: cfg.MaxLoanAmount,
	})
	iss := issuer.NewIssuer(store, gate, sealer, logger)
	svc := service.NewService(engine, iss, store, journal, logger, cfg)

	var alerts *email.Sender
	if cfg.SMTPHost != "" && cfg.AlertEmail != "" {
		alerts = email.NewSender(cfg, logger)
		svc.AttachAlerter(alerts)
	}

	var dispatcher *settlement.Dispatcher
	if cfg.SettlementURL != "" {
		client := settlement.NewClient(cfg.SettlementURL, cfg.SettlementTimeout, logger)
		var alerter settlement.Alerter
		if alerts != nil {
			alerter = alerts
		}
		dispatcher = settlement.NewDispatcher(client, svc, alerter, cfg.SettlementTimeout, logger)
		svc.AttachDispatcher(dispatcher)
	} else {
		logger.Warn("SETTLEMENT_URL not set, loans stay pending until confirmed via callback")
	}

	sched := scheduler.New(logger)
	var reporter scheduler.Reporter
	if alerts != nil {
		reporter = alerts
	}
	reconcile := scheduler.NewReconcileJob(scheduler.ReconcileConfig{
		Pending:  store,
		Reverser: svc,
		Reporter: reporter,
		After:    cfg.ReconcileAfter,
		Timeout:  cfg.SettlementTimeout,
		Log:      logger,
	})
	if err := sched.AddJob(cfg.ReconcileSchedule, reconcile); err != nil {
		logger.Fatalf("Invalid RECONCILE_SCHEDULE: %v", err)
	}
	// Loans left pending by a previous process are reconciled before serving.
	if err := sched.RunNow(reconcile); err != nil {
		logger.Errorf("Startup reconciliation failed: %v", err)
	}
	sched.Start()

	// Setup router
	r := mux.NewRouter()
	handler.NewHandler(svc, logger).Routes(r, middleware.AuthMiddleware(cfg))

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SettlementTimeout+5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	sched.Stop()
	if dispatcher != nil {
		if err := dispatcher.Shutdown(ctx); err != nil {
			logger.Errorf("Settlements still in flight at shutdown: %v", err)
		}
	}
}

// restoreLedger replays the journal into the in-memory ledger and rejects
// records whose seal does not verify.
func restoreLedger(ctx context.Context, repo *repository.Repository, store *ledger.Store, sealer *utils.LedgerSealer, cfg *config.Config, logger *logrus.Logger) error {
	if err := repo.Migrate(ctx); err != nil {
		return err
	}
	loans, err := repo.LoadLoans(ctx)
	if err != nil {
		return err
	}
	for _, loan := range loans {
		if !sealer.Verify(loan) {
			return fmt.Errorf("seal mismatch for loan %s", loan.LoanID)
		}
	}
	deposits, err := repo.TotalDeposits(ctx)
	if err != nil {
		return err
	}

	balance := repository.PoolBalance(cfg.PoolInitialBalance, deposits, loans)
	if err := store.Restore(balance, loans); err != nil {
		return err
	}
	logger.Infof("Restored %d loans, pool balance %s", len(loans), balance)
	return nil
}
