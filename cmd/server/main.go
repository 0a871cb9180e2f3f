package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CK6170/Leocal-go/internal/server"
	"github.com/CK6170/Leocal-go/modern"
)

func main() {
	var (
		addr  = flag.String("addr", "127.0.0.1:8080", "http listen address")
		web   = flag.String("web", "./web", "path to web root (index.html)")
		root  = flag.String("data-root", "", "only allow data directories below this path")
		debug = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	webDir := ""
	if st, err := os.Stat(*web); err == nil && st.IsDir() {
		webDir = *web
	}

	s := server.New(server.Options{
		Root:    *root,
		WebDir:  webDir,
		Version: modern.ToolVersion(),
	})
	defer s.Close()

	srv := &http.Server{Addr: *addr, Handler: s.Handler()}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("serving", "url", "http://"+*addr, "web", webDir, "version", modern.ToolVersion())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("listen", "err", err)
		os.Exit(1)
	}
}
