package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/PsiTechC/apex/internal/adapters/http"
	mailadapter "github.com/PsiTechC/apex/internal/adapters/mail"
	pg "github.com/PsiTechC/apex/internal/adapters/postgres"
	"github.com/PsiTechC/apex/internal/adapters/storage"
	"github.com/PsiTechC/apex/internal/config"
	"github.com/PsiTechC/apex/internal/ports"
	asgsvc "github.com/PsiTechC/apex/internal/services/assignments"
	catsvc "github.com/PsiTechC/apex/internal/services/catalog"
	dashsvc "github.com/PsiTechC/apex/internal/services/dashboard"
	evsvc "github.com/PsiTechC/apex/internal/services/evidence"
	trainsvc "github.com/PsiTechC/apex/internal/services/training"
	usersvc "github.com/PsiTechC/apex/internal/services/users"
	mailworker "github.com/PsiTechC/apex/internal/workers/mailer"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Warn("config", "warning", err)
	}
	if cfg.DatabaseURL == "" {
		log.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Error("db migrate", "error", err)
		os.Exit(1)
	}

	blobs, err := storage.NewFromConfig(ctx, cfg.Storage, cfg.PublicBaseURL)
	if err != nil {
		log.Error("blob store", "error", err)
		os.Exit(1)
	}

	var mailer ports.Mailer
	if cfg.SMTP.Host != "" {
		mailer, err = mailadapter.NewSMTPMailer(cfg.SMTP)
		if err != nil {
			log.Error("smtp", "error", err)
			os.Exit(1)
		}
	} else {
		mailer = mailadapter.NopMailer{Log: log}
	}

	// Wire repositories to services (ports)
	var _ ports.ControlRepository = db
	var _ ports.AssignmentRepository = db
	var _ ports.AuditRepository = db
	var _ ports.UserRepository = db
	var _ ports.RiskRepository = db
	var _ ports.MailJobRepository = db

	router := httpadapter.NewRouter(httpadapter.Services{
		Catalog:     catsvc.New(db),
		Assignments: asgsvc.New(db, db, log),
		Evidence:    evsvc.New(db, db, db, blobs, log),
		Dashboard:   dashsvc.New(db, db),
		Users:       usersvc.New(db, db, db, cfg.PublicBaseURL, log),
		Training:    trainsvc.New(db, cfg.TrainingBaseURL, log),
		UserRepo:    db,
	}, log)

	if cfg.MailWorkers > 0 {
		mailworker.Run(ctx, db, mailer, cfg.MailWorkers, 500*time.Millisecond, log)
		log.Info("mail workers started", "count", cfg.MailWorkers)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- http.ListenAndServe(cfg.ListenAddr, router) }()
	log.Info("listening", "addr", cfg.ListenAddr, "env", cfg.Env)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
		cancel()
		time.Sleep(300 * time.Millisecond)
	case err := <-errCh:
		log.Error("server", "error", err)
		os.Exit(1)
	}
}
