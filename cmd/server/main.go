package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/phara0n/ecarv1/internal/config"
	"github.com/phara0n/ecarv1/internal/db"
	"github.com/phara0n/ecarv1/internal/jobs"
	"github.com/phara0n/ecarv1/internal/logger"
	"github.com/phara0n/ecarv1/internal/notify"
	"github.com/phara0n/ecarv1/internal/pdf"
	"github.com/phara0n/ecarv1/internal/policy"
	"github.com/phara0n/ecarv1/internal/server"
	"github.com/phara0n/ecarv1/internal/services"
	"github.com/phara0n/ecarv1/internal/storage"

	authpkg "github.com/phara0n/ecarv1/internal/auth"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	if err := logger.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintln(os.Stderr, "logger setup:", err)
		os.Exit(1)
	}
	log := logger.WithComponent("main")

	database, err := db.ConnectAndMigrate(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}
	if *migrateOnly {
		log.Info().Msg("migrations complete")
		return
	}

	store, err := storage.New(cfg.StorageDir, database)
	if err != nil {
		log.Fatal().Err(err).Msg("storage init failed")
	}

	calc := services.NewCalculator(cfg.Fiscal)
	renderer := pdf.NewRenderer(cfg.Fiscal)
	notifier := notify.New(database)

	queue := jobs.NewQueue(2, 64)
	invoiceSvc := services.NewInvoiceService(database, calc, queue, store)

	// renderAndStore is shared by the background queue and the
	// download handler's render-on-demand path.
	renderAndStore := func(invoiceID uint) error {
		inv, err := invoiceSvc.Get(context.Background(), invoiceID)
		if err != nil {
			return err
		}
		snap := pdf.NewSnapshot(inv)
		data, err := renderer.Render(snap)
		if err != nil {
			return err
		}
		_, err = store.Put(inv.ID, snap.FileName(), data)
		return err
	}
	queue.Handle(services.JobRenderPDF, renderAndStore)
	queue.Handle(services.JobNotifyCreated, notifier.InvoiceCreated)
	queue.Handle(services.JobNotifyPayment, notifier.PaymentUpdated)
	queue.Start()

	tokens := authpkg.NewTokenIssuer(cfg.TokenSecret)
	handler := server.New(server.Deps{
		DB:          database,
		Tokens:      tokens,
		Gate:        policy.Default(),
		Invoices:    invoiceSvc,
		Documents:   store,
		Attachments: store,
		RenderPDF:   renderAndStore,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	queue.Stop()
	log.Info().Msg("bye")
}
