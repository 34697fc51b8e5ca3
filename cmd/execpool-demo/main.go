// Command execpool-demo wires an executor with its full ambient and
// domain stack — config load with hot reload, structured logging, an
// optional hash-chained audit trail, and the HTTP admin surface — and
// drives it with a synthetic load of tasks so the pieces can be observed
// working together.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nullstacklabs/execpool/pkg/admin"
	"github.com/nullstacklabs/execpool/pkg/audit"
	auditpg "github.com/nullstacklabs/execpool/pkg/audit/postgres"
	"github.com/nullstacklabs/execpool/pkg/executor"
	"github.com/nullstacklabs/execpool/pkg/poolconfig"
	"github.com/nullstacklabs/execpool/pkg/poollog"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file (optional)")
	flag.Parse()

	cfg, err := poolconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("execpool-demo: %v", err)
	}

	level, err := poollog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("execpool-demo: %v", err)
	}
	format := poollog.TextFormat
	if cfg.Logging.Format == "json" {
		format = poollog.JSONFormat
	}
	logger := poollog.New(&poollog.Config{
		Level:     level,
		Format:    format,
		Output:    os.Stdout,
		Component: "execpool-demo",
		Sanitize:  true,
	})

	opts := []executor.Option{executor.WithLogger(logger)}

	chain := audit.NewChain()
	var pgStore *auditpg.Store
	if cfg.Audit.Enabled {
		pgStore, err = auditpg.Open(context.Background(), &auditpg.Config{
			ConnectionString: cfg.Audit.PostgresDSN,
		})
		if err != nil {
			log.Fatalf("execpool-demo: opening audit store: %v", err)
		}
		if err := pgStore.MigrateToLatest(); err != nil {
			log.Fatalf("execpool-demo: migrating audit schema: %v", err)
		}
		defer pgStore.Close()
		chain = audit.NewChain(pgStore)
	}
	opts = append(opts, executor.WithRecorder(chain))

	pool := executor.New(cfg.Pool.MinSize, cfg.Pool.MaxSize, cfg.KeepAlive(), opts...)
	pool.SetDestructorTimeout(cfg.DestructorTimeout())

	if *configPath != "" {
		watcher, err := poolconfig.NewWatcher(*configPath)
		if err != nil {
			logger.Warnf("config hot-reload disabled: %v", err)
		} else {
			defer watcher.Close()
			go applyReloads(pool, watcher, logger)
		}
	}

	var adminServer *http.Server
	if cfg.Admin.Enabled {
		srv := admin.New(pool, 500*time.Millisecond)
		chain.AddSink(srv)
		adminServer = &http.Server{Addr: cfg.Admin.Addr, Handler: srv.Router()}
		go func() {
			logger.Infof("admin surface listening on %s", cfg.Admin.Addr)
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warnf("admin server: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go driveSyntheticLoad(pool, logger)

	<-stop
	logger.Infof("shutting down")
	if adminServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		adminServer.Shutdown(shutdownCtx)
	}
	pool.Close()

	if err := chain.VerifyIntegrity(); err != nil {
		logger.Warnf("audit chain integrity check failed: %v", err)
	}
}

func applyReloads(pool *executor.Executor, watcher *poolconfig.Watcher, logger *poollog.Logger) {
	for {
		select {
		case cfg, ok := <-watcher.Updates():
			if !ok {
				return
			}
			pool.SetMinPoolSize(cfg.Pool.MinSize)
			pool.SetMaxPoolSize(cfg.Pool.MaxSize)
			pool.SetKeepAliveTime(cfg.KeepAlive())
			logger.Infof("applied reloaded config: min=%d max=%d keepalive=%s",
				cfg.Pool.MinSize, cfg.Pool.MaxSize, cfg.KeepAlive())
		case err, ok := <-watcher.Errors():
			if !ok {
				return
			}
			logger.Warnf("config reload failed: %v", err)
		}
	}
}

func driveSyntheticLoad(pool *executor.Executor, logger *poollog.Logger) {
	var n int
	for {
		n++
		i := n
		ok := pool.Submit(executor.FuncTask(func() {
			time.Sleep(50 * time.Millisecond)
		}))
		if !ok {
			logger.Infof("pool no longer accepting work, stopping synthetic load after %d tasks", i)
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}
