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
	"github.com/gigmarket/backend/internal/cache"
	"github.com/gigmarket/backend/internal/config"
	"github.com/gigmarket/backend/internal/gig"
	"github.com/gigmarket/backend/internal/httputil"
	mw "github.com/gigmarket/backend/internal/middleware"
	"github.com/gigmarket/backend/internal/search"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	index, err := search.Connect(ctx, cfg.ElasticURL)
	if err != nil {
		log.Fatalf("gig: search connect failed: %v", err)
	}

	redis := cache.New(ctx, cfg.RedisAddr)
	defer redis.Close()

	mgr := broker.MustConnect(cfg.AMQPURL)
	defer mgr.Close()

	svc := gig.NewService(index, redis, broker.NewPublisher(mgr))

	go runConsumer(ctx, mgr, "gig-review", broker.ReviewGig, gig.ReviewDispatcher(index))
	go runConsumer(ctx, mgr, "gig-update", broker.GigUpdate, gig.UpdateDispatcher(index))
	go runConsumer(ctx, mgr, "gig-seed", broker.GigSeed, gig.SeedDispatcher(svc))

	r := mux.NewRouter()
	r.Use(mw.RateLimit(100, 200))
	r.HandleFunc("/healthz", httputil.Health("gig")).Methods(http.MethodGet)
	gig.NewHandlers(svc).RegisterRoutes(r)

	serve(cancel, r, cfg.Port, "gig")
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
