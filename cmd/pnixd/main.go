// Command pnixd is a reference host for the pnix runtime: it wires a
// runtime.Runtime, registers the demonstration commands needed to drive
// the core end to end, runs the tick loop on its own goroutine, and
// serves the optional admin HTTP surface. Embedding pnix does not require
// this binary — it exists to show one way to drive it.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rkvdev/pnix/httpapi"
	"github.com/rkvdev/pnix/internal/kernel"
	"github.com/rkvdev/pnix/runtime"
)

func main() {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	log := zap.Must(logConfig.Build())
	defer log.Sync()
	log = log.Named("pnixd")

	rt := runtime.New(runtime.WithLogger(log))
	registerDemoCommands(rt.RegisterCommand)

	ticker := startTickLoop(rt)
	defer ticker.stop()

	addr := rt.Config().HTTPAddr
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	router := httpapi.New(rt, httpapi.Options{Dev: os.Getenv("ENV") == "dev"})
	httpserver := &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 15,
		ErrorLog:       zap.NewStdLog(log.Named("http").WithOptions(zap.AddCallerSkip(1))),
	}

	go func() {
		log.Info("running admin HTTP server", zap.String("addr", addr))
		if err := httpserver.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("admin http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpserver.Shutdown(ctx)

	ticker.stop()
	rt.Destroy(64)
}

// tickLoop drives rt.Kernel()'s MAIN queue, plus every other registered
// queue, on a fixed-rate goroutine — the simplest host loop that keeps
// MAIN ticked from the same goroutine across the runtime's lifetime.
type tickLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startTickLoop(rt *runtime.Runtime) *tickLoop {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, name := range rt.Kernel().Queues.Names() {
					if name == kernel.MainQueue {
						continue
					}
					rt.Kernel().Tick(name)
				}
				rt.Kernel().TickMain()
			}
		}
	}()

	return &tickLoop{cancel: cancel, done: done}
}

func (t *tickLoop) stop() {
	t.cancel()
	<-t.done
}
