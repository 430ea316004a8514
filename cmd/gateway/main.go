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

	"github.com/gigmarket/backend/internal/auth"
	"github.com/gigmarket/backend/internal/broker"
	"github.com/gigmarket/backend/internal/cache"
	"github.com/gigmarket/backend/internal/config"
	"github.com/gigmarket/backend/internal/httputil"
	mw "github.com/gigmarket/backend/internal/middleware"
	"github.com/gigmarket/backend/internal/ws"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redis := cache.New(ctx, cfg.RedisAddr)
	defer redis.Close()

	mgr := broker.MustConnect(cfg.AMQPURL)
	defer mgr.Close()

	hub := ws.NewHub(redis)
	go hub.Run()

	go runConsumer(ctx, mgr, "gateway-chat", broker.ChatStream, ws.ChatDispatcher(hub))
	go runConsumer(ctx, mgr, "gateway-order", broker.OrderStream, ws.OrderAlertDispatcher(hub))

	jwtService := auth.NewJWTService(cfg.JWTSecret)

	r := mux.NewRouter()
	r.Use(mw.RateLimit(50, 100))
	r.HandleFunc("/healthz", httputil.Health("gateway")).Methods(http.MethodGet)
	ws.NewWSHandler(hub, jwtService).RegisterRoutes(r)

	serve(cancel, r, cfg.Port, "gateway")
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
