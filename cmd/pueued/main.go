// Command pueued is the daemon: it owns the task registry, supervises child
// processes, and serves the Unix-socket control protocol (and, optionally,
// a read-only HTTP introspection endpoint).
//
// Grounded on the teacher's cmd/agsh/main.go top-level wiring shape
// (signal.Notify feeding a cancelable context, deferred cleanup) adapted
// from a one-shot REPL process to a long-lived supervised daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"pueued/internal/config"
	"pueued/internal/dispatch"
	"pueued/internal/events"
	"pueued/internal/httpapi"
	"pueued/internal/logging"
	"pueued/internal/logindex"
	"pueued/internal/logstore"
	"pueued/internal/registry"
	"pueued/internal/scheduler"
	"pueued/internal/shutdown"
	"pueued/internal/supervisor"
	"pueued/internal/transport"
	"pueued/internal/wire"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to pueue.yml (optional)")
	debugLog := flag.Bool("debug", false, "use the development (human-readable) log encoder")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pueued: config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(*debugLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pueued: logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := os.MkdirAll(cfg.PueueDirectory, 0o755); err != nil {
		log.Fatal("creating pueue directory", zap.Error(err))
	}

	logs := logstore.New(cfg.LogDir)
	idx := logindex.Open(filepath.Join(cfg.PueueDirectory, "logindex"))
	if idx != nil {
		logs.Index = idx // only ever assign from a confirmed-non-nil *logindex.Index
		defer idx.Close()
	}

	reg := registry.New(cfg.PueueDirectory, logs, cfg.DefaultParallelism)
	if err := reg.Load(); err != nil {
		log.Fatal("loading state", zap.Error(err))
	}

	sup := supervisor.New(logs)
	sched := scheduler.New()

	callback := func(group string) string {
		g, err := reg.Group(group)
		if err != nil || g.Callback == "" {
			return cfg.Callback
		}
		return g.Callback
	}
	loop := dispatch.New(reg, sup, sched, logs, callback)

	ctx, cancel := context.WithCancel(context.Background())
	logEventTap(ctx, loop.Events, log)
	loopDone := make(chan struct{})
	loop.NotifyOnShutdown(loopDone)

	pidFile := filepath.Join(cfg.PueueDirectory, "pueue.pid")
	if err := shutdown.WritePID(pidFile); err != nil {
		log.Fatal("writing pid file", zap.Error(err))
	}
	coordinator := shutdown.New(pidFile, cancel, loopDone)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal")
		loop.Submit(context.Background(), wire.Message{Type: wire.MsgDaemonShutdown, Payload: wire.DaemonShutdown{Kind: wire.ShutdownGraceful}})
	}()

	if err := os.RemoveAll(cfg.Daemon.Bind); err != nil {
		log.Fatal("clearing stale control socket", zap.Error(err))
	}
	ln, err := net.Listen("unix", cfg.Daemon.Bind)
	if err != nil {
		log.Fatal("binding control socket", zap.Error(err))
	}
	defer os.RemoveAll(cfg.Daemon.Bind)
	listener := transport.NewListener(loop)

	go func() {
		if err := listener.Serve(ctx, ln); err != nil {
			log.Warn("transport listener stopped", zap.Error(err))
		}
	}()

	if cfg.Daemon.HTTPBind != "" {
		httpServer := httpapi.New(loop, log)
		go func() {
			if err := httpServer.Run(ctx, cfg.Daemon.HTTPBind); err != nil {
				log.Warn("http introspection server stopped", zap.Error(err))
			}
		}()
	}

	log.Info("pueued started", zap.String("bind", cfg.Daemon.Bind))
	loop.Run(ctx)

	if err := coordinator.Shutdown(context.Background(), cfg.ShutdownGrace); err != nil {
		log.Warn("shutdown coordinator", zap.Error(err))
	}
	log.Info("pueued stopped")
}

// logEventTap registers a tap on bus and emits one structured log line per
// published event, until ctx is done. This is the bus's one real consumer in
// the shipped daemon; internal/events is written to support more (an HTTP
// SSE/websocket surface, say) without dispatch.go needing to know about them.
func logEventTap(ctx context.Context, bus *events.Bus, log *zap.Logger) {
	tap := bus.NewTap()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-tap:
				log.Debug("task event",
					zap.String("kind", string(evt.Kind)),
					zap.Int("task_id", evt.TaskId),
					zap.String("status", string(evt.Status)))
			}
		}
	}()
}
