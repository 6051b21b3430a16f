// Command scheduler-sweepd is the background process that owns the
// scheduler's Store and runs the reconcile sweep (spec §4.4/§9). It does
// not expose any transport (HTTP/UI, agent RPC) — those are explicit
// non-goals — so wiring an agent-facing frontend against the same
// SchedulerService is left to whatever process embeds this module.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sner/scheduler/cmn"
	"github.com/sner/scheduler/scheduler"
	"github.com/sner/scheduler/stats"
	"github.com/sner/scheduler/store"
	"github.com/sner/scheduler/sweep"
)

func main() {
	configPath := flag.String("config", "", "path to scheduler config YAML (defaults built in if unset)")
	sweepInterval := flag.Duration("sweep-interval", 30*time.Second, "how often the reconcile sweep runs")
	leaseTTL := flag.Duration("lease-ttl", 5*time.Minute, "how long a job may stay non-terminal before it's reconciled")
	flag.Parse()

	cfg := cmn.DefaultConfig()
	if *configPath != "" {
		loaded, err := cmn.LoadConfig(*configPath)
		if err != nil {
			glog.Fatalf("failed to load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}
	cmn.GCO.Put(cfg)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		glog.Fatalf("failed to open store %s: %v", cfg.Store.Path, err)
	}
	defer st.Close()

	metrics := stats.New(prometheus.NewRegistry())
	svc := scheduler.New(st, cfg.Blacklist.SourcePath, metrics)

	sweeper := sweep.New(svc, *sweepInterval, *leaseTTL)
	ctx, cancel := context.WithCancel(context.Background())
	go sweeper.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	glog.Info("scheduler-sweepd: shutting down")
	cancel()
	sweeper.Stop()
}
