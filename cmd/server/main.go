package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/cando-yeh/reimbursement-sub001/internal/auth"
	"github.com/cando-yeh/reimbursement-sub001/internal/config"
	"github.com/cando-yeh/reimbursement-sub001/internal/dispatcher"
	httpserver "github.com/cando-yeh/reimbursement-sub001/internal/interfaces/http"
	"github.com/cando-yeh/reimbursement-sub001/internal/payment"
	"github.com/cando-yeh/reimbursement-sub001/internal/repository"
	"github.com/cando-yeh/reimbursement-sub001/internal/users"
	"github.com/cando-yeh/reimbursement-sub001/internal/vendors"
	"github.com/cando-yeh/reimbursement-sub001/internal/voucher"
	"github.com/cando-yeh/reimbursement-sub001/internal/workflow"
	"github.com/cando-yeh/reimbursement-sub001/pkg/database"
	"github.com/cando-yeh/reimbursement-sub001/pkg/utils"
)

func main() {
	// Local overrides; absent in production.
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting claim approval service", zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := database.NewMigrator(db, logger).Run(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	claimRepo := repository.NewClaimRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	vendorRepo := repository.NewVendorRepository(db.DB, logger)
	paymentRepo := repository.NewPaymentRepository(db.DB, logger)

	policy := auth.NewPolicy()
	events := dispatcher.New(logger)
	defer events.Close()

	claimEngine := workflow.NewEngine(db, claimRepo, userRepo, vendorRepo, policy, events, logger)
	vendorEngine := vendors.NewEngine(db, vendorRepo, userRepo, policy, events, logger)
	paymentEngine := payment.NewEngine(db, claimRepo, paymentRepo, userRepo, policy, events, logger)
	userService := users.NewService(userRepo, policy, logger)

	voucherGenerator, err := voucher.NewGenerator(voucher.Config{
		OutputDir:   cfg.Voucher.OutputDir,
		CompanyName: cfg.Voucher.CompanyName,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize voucher generator", zap.Error(err))
	}

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, claimEngine, vendorEngine, paymentEngine, userService, voucherGenerator, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}
