package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"knibbles-server/api"
	"knibbles-server/config"
	"knibbles-server/game"
	"knibbles-server/logger"
	"knibbles-server/server"
)

func main() {
	// .env is optional; environment variables win either way.
	_ = godotenv.Load()
	cfg := config.LoadServerConfig()

	if err := logger.Init(cfg.LogFile); err != nil {
		panic(err)
	}
	defer logger.Sync()

	ws := server.New()
	engine := game.NewEngine(ws)
	ws.Bind(engine)
	go engine.Run()

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
	}))
	r.Mount("/api", api.NewAPIRouter(engine))
	r.HandleFunc("/ws", ws.HandleConnections)
	// Serve the static frontend bundle.
	r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.Infof("knibbles server listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("shutting down...")
	engine.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
