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
	"github.com/gigmarket/backend/internal/db"
	"github.com/gigmarket/backend/internal/httputil"
	mw "github.com/gigmarket/backend/internal/middleware"
	"github.com/gigmarket/backend/internal/order"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("order: database connection failed: %v", err)
	}
	defer database.Close()
	if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Fatalf("order: migrations failed: %v", err)
	}

	mgr := broker.MustConnect(cfg.AMQPURL)
	defer mgr.Close()

	store := order.NewPgStore(database.Pool)
	svc := order.NewService(store, broker.NewPublisher(mgr), cfg.ClientURL)

	go runConsumer(ctx, mgr, "order-review", broker.ReviewOrder, order.ReviewDispatcher(store))

	r := mux.NewRouter()
	r.Use(mw.RateLimit(100, 200))
	r.HandleFunc("/healthz", httputil.Health("order")).Methods(http.MethodGet)
	order.NewHandlers(svc).RegisterRoutes(r)

	serve(cancel, r, cfg.Port, "order")
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
