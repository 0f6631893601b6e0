// Command lcm runs the Lifecycle Coordinator: it loads configuration,
// wires up its collaborators (Db, Fs, Msg, RO, VCA), then starts the
// dispatch loop, the liveness prober, and the read-only admin HTTP
// surface, a direct port of the original coordinator's main entrypoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/adminapi"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/bus"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/config"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/db"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/dispatch"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/fs"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/logging"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/metrics"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/prober"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/registry"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/ro"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/vca"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/workflows"
)

// defaultConfigPaths mirrors the original's search order for lcm.cfg.
var defaultConfigPaths = []string{"./lcm.cfg", "/etc/osm/lcm.cfg"}

func main() {
	configFile := flag.String("c", "", "path to the coordinator's YAML config file")
	flag.StringVar(configFile, "config", "", "path to the coordinator's YAML config file (long form)")
	flag.Parse()

	path := resolveConfigPath(*configFile)
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lcm: loading config: %v\n", err)
		os.Exit(1)
	}

	logFactory := logging.NewFactory(logging.Config{Level: cfg.Global.LogLevel, Format: cfg.Global.LogFormat})
	log := logFactory.For(logging.Dispatch)
	log.WithField("config", path).Info("starting lifecycle coordinator")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	database := buildDb(cfg.Database, logFactory)
	filestore := buildFs(cfg.Storage, logFactory)
	msgBus := buildBus(cfg.Message)
	roClient := ro.NewClient(cfg.RO.URI, time.Duration(cfg.RO.Timeout)*time.Second, ro.WithTenant(cfg.RO.Tenant))
	vcaClient := buildVca(cfg.VCA, logFactory)

	taskRegistry := registry.New()
	wf := workflows.New(workflows.Collaborators{
		Db:       database,
		Fs:       filestore,
		Bus:      msgBus,
		RO:       roClient,
		VCA:      vcaClient,
		Registry: taskRegistry,
		Metrics:  m,
		Log:      log,
	})

	pr := prober.New(msgBus, logFactory.For(logging.Prober), func(missed int) { m.ProberPingsMissed.Set(float64(missed)) })
	dp := dispatch.New(msgBus, wf, taskRegistry, pr, m, logFactory.For(logging.Dispatch))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go consumeStatusUpdates(ctx, wf, vcaClient)
	go runAndLog(log, "liveness prober", pr.Run, ctx)
	go runAndLog(log, "dispatch loop", dp.Run, ctx)

	var adminSrv *http.Server
	if cfg.AdminAPI.Enabled {
		srv := &adminapi.Server{
			Db:       database,
			Registry: taskRegistry,
			Log:      logFactory.For(logging.AdminAPI),
			Debug:    cfg.Global.LogLevel == "debug",
		}
		adminSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.AdminAPI.Port),
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Infof("admin API listening on %s", adminSrv.Addr)
			if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("admin API server stopped unexpectedly")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down lifecycle coordinator")

	cancel()
	if adminSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("admin API shutdown forced")
		}
	}
	_ = database.Disconnect()
	_ = filestore.Disconnect()
	_ = msgBus.Disconnect()
	log.Info("lifecycle coordinator stopped")
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	for _, p := range defaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return defaultConfigPaths[0]
}

func buildDb(cfg config.Database, lf *logging.Factory) db.Db {
	switch cfg.Driver {
	case "memory", "":
		return db.NewMemoryDb()
	default:
		lf.For(logging.Db).Warnf("unsupported database.driver %q, falling back to memory", cfg.Driver)
		return db.NewMemoryDb()
	}
}

func buildFs(cfg config.Storage, lf *logging.Factory) fs.Fs {
	switch cfg.Driver {
	case "local":
		return fs.NewLocalFs(cfg.Path)
	case "memory", "":
		return fs.NewMemoryFs()
	default:
		lf.For(logging.Fs).Warnf("unsupported storage.driver %q, falling back to memory", cfg.Driver)
		return fs.NewMemoryFs()
	}
}

func buildBus(cfg config.Message) bus.Msg {
	switch cfg.Driver {
	case "memory", "":
		return bus.NewMemoryBus(1000)
	default:
		return bus.NewMemoryBus(1000)
	}
}

func buildVca(cfg config.VCA, log *logging.Factory) vca.Client {
	if err := vca.CheckVersion(cfg.Version, config.MinVCAVersion); err != nil {
		log.For(logging.VCA).WithError(err).Fatal("vca version gate failed")
	}
	if cfg.Host == "" {
		return vca.NewMockClient()
	}
	return vca.NewRealClient(cfg.Host, cfg.Port)
}

func consumeStatusUpdates(ctx context.Context, wf *workflows.Workflows, client vca.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-client.Updates():
			if !ok {
				return
			}
			wf.RouteStatusUpdate(ctx, u)
		}
	}
}

// runAndLog runs fn(ctx) and logs its terminal error, if any, treating
// context cancellation as expected shutdown rather than a failure.
func runAndLog(log *logrus.Entry, name string, fn func(context.Context) error, ctx context.Context) {
	if err := fn(ctx); err != nil && err != context.Canceled {
		log.WithError(err).Errorf("%s stopped", name)
	}
}
