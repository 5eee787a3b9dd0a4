package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/hutch/pkg/certs"
	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/events"
	"github.com/cuemby/hutch/pkg/fleet"
	"github.com/cuemby/hutch/pkg/health"
	"github.com/cuemby/hutch/pkg/healthreg"
	"github.com/cuemby/hutch/pkg/jobs"
	"github.com/cuemby/hutch/pkg/lock"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/metrics"
	"github.com/cuemby/hutch/pkg/storage"
	"github.com/cuemby/hutch/pkg/tasks"
)

var (
	workerConfigPath  string
	workerDataDir     string
	workerCount       int
	workerLogLevel    string
	workerMetricsAddr string
	workerQueueSize   int
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the job worker pool and sweep scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker()
	},
}

func init() {
	workerCmd.Flags().StringVarP(&workerConfigPath, "config", "c", "", "Path to YAML config file")
	workerCmd.Flags().StringVar(&workerDataDir, "data-dir", "/var/lib/hutch", "Data directory for the state store")
	workerCmd.Flags().IntVar(&workerCount, "workers", 4, "Number of concurrent job workers")
	workerCmd.Flags().StringVar(&workerLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	workerCmd.Flags().StringVar(&workerMetricsAddr, "metrics-addr", ":9090", "Prometheus metrics listen address (empty to disable)")
	workerCmd.Flags().IntVar(&workerQueueSize, "queue-size", 256, "In-memory job queue buffer size")
}

func runWorker() error {
	log.Init(log.Config{
		Level:      log.Level(workerLogLevel),
		JSONOutput: true,
		Output:     os.Stdout,
	})

	cfg, err := config.Load(workerConfigPath)
	if err != nil {
		return err
	}

	store, err := storage.NewBoltStore(workerDataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	provisioner, err := fleet.NewProvisioner(cfg.HostManager, cfg.LBManager)
	if err != nil {
		return err
	}

	var registry healthreg.Registry = healthreg.Noop{}
	if cfg.HCAPIURL != "" {
		registry = healthreg.NewAPIRegistry(healthreg.APIConfig{
			URL:      cfg.HCAPIURL,
			User:     cfg.HCAPIUser,
			Password: cfg.HCAPIPassword,
			Format:   cfg.HCAPIFormat,
		})
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	queue := jobs.NewMemoryQueue(workerQueueSize)
	runner := jobs.NewRunner(&jobs.Deps{
		Config: cfg,
		Store:  store,
		Tasks:  tasks.NewManager(store),
		Locks:  lock.NewStoreService(store),
		Fleet:  provisioner,
		Health: registry,
		Prober: health.NewProber(),
		Certs:  certs.NewRegistry(certs.Env{Store: store}),
		Events: broker,
		Queue:  queue,
	}, workerCount)

	scheduler := jobs.NewScheduler(queue)
	scheduler.Start()
	defer scheduler.Stop()

	if workerMetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(workerMetricsAddr, mux); err != nil {
				log.Errorf("Metrics listener stopped", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Info(fmt.Sprintf("Received %s, shutting down", sig))
		cancel()
	}()

	log.Info("Hutch worker started")
	runner.Run(ctx)
	return nil
}
