// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"gamehub/games/chat"
	"gamehub/games/schelling"
	"gamehub/internal/auth"
	"gamehub/internal/config"
	"gamehub/internal/handlers"
	"gamehub/internal/history"
	"gamehub/internal/middleware"
	"gamehub/internal/server"
)

const version = "gamehub 0.1.0"

func main() {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(config.GetEnv("LOG_LEVEL", "info")); err == nil {
		logger.SetLevel(level)
	}

	if err := auth.Init(); err != nil {
		log.Fatalf("auth init: %v", err)
	}

	recorder, err := history.Connect(logger)
	if err != nil {
		log.Fatalf("history recorder: %v", err)
	}
	if recorder == nil {
		logger.Info("REDIS_ADDR unset, lobby history disabled")
	}
	defer recorder.Close()

	rt, err := server.NewBuilder().
		WithLogger(logger).
		WithRecorder(recorder).
		WithVersion(version).
		Register("chat", chat.New).
		Register("schelling", schelling.New).
		Build()
	if err != nil {
		log.Fatalf("building runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go rt.Run(ctx)

	mux := http.NewServeMux()

	mux.Handle("/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		server.WSHandler(logger, rt),
	)))

	// admin endpoints
	mux.Handle("/admin/login", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.AdminLoginHandler(logger),
	)))
	mux.Handle("/admin/lobbies", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.RequireAdmin(handlers.AdminLobbiesHandler(logger, rt)),
	)))
	mux.Handle("/admin/stats", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.RequireAdmin(handlers.AdminStatsHandler(logger, rt)),
	)))

	// optional static client files
	if dir := config.GetEnv("STATIC_DIR", ""); dir != "" {
		mux.Handle("/", http.FileServer(http.Dir(dir)))
	}

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Infof("Running on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server exited: %v", err)
	}
}
