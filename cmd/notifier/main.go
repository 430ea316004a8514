package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/gigmarket/backend/internal/broker"
	"github.com/gigmarket/backend/internal/config"
	"github.com/gigmarket/backend/internal/httputil"
	"github.com/gigmarket/backend/internal/mail"
	"github.com/gigmarket/backend/internal/notifier"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailer, err := mail.New(mail.Config{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		User:        cfg.SMTPUser,
		Pass:        cfg.SMTPPass,
		FromAddress: cfg.SMTPFrom,
		FromName:    cfg.FromName,
	})
	if err != nil {
		log.Fatalf("notifier: mailer setup failed: %v", err)
	}

	mgr := broker.MustConnect(cfg.AMQPURL)
	defer mgr.Close()

	// Both email families share the dispatcher; each queue gets its own
	// consumer so a backlog on one does not slow the other.
	go runConsumer(ctx, mgr, "notifier-auth", broker.AuthEmail, notifier.Dispatcher(mailer))
	go runConsumer(ctx, mgr, "notifier-order", broker.OrderEmail, notifier.Dispatcher(mailer))

	r := mux.NewRouter()
	r.HandleFunc("/healthz", httputil.Health("notifier")).Methods(http.MethodGet)

	serve(cancel, r, cfg.Port, "notifier")
}

func runConsumer(ctx context.Context, mgr *broker.Manager, name string, b broker.Binding, d *broker.Dispatcher) {
	if err := broker.NewConsumer(mgr, name).Run(ctx, b, d); err != nil && ctx.Err() == nil {
		log.Printf("%s: consumer stopped: %v", name, err)
	}
}

// serve runs the HTTP server until SIGINT/SIGTERM, then drains it.
func serve(cancel context.CancelFunc, handler http.Handler, port, name string) {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Printf("%s: shutting down...", name)
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	log.Printf("%s: listening on :%s", name, port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("%s: server error: %v", name, err)
	}
}
