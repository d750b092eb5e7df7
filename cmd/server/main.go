package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"voxelbend.ai/internal/observerproto"
	persistlog "voxelbend.ai/internal/persistence/log"
	"voxelbend.ai/internal/sim/engine"
	"voxelbend.ai/internal/sim/partition"
	"voxelbend.ai/internal/sim/tuning"
	"voxelbend.ai/internal/transport/observer"
)

func main() {
	var (
		addr           = flag.String("addr", ":8080", "http listen address")
		configDir      = flag.String("configs", "./configs", "config directory")
		dataDir        = flag.String("data", "./data", "runtime data directory")
		tuningPath     = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		partitionsPath = flag.String("partitions", "", "path to partitions.yaml (default: <configs>/partitions.yaml)")
		serverID       = flag.String("server_id", "server_1", "server id stamped on shipped index batches")
		disableDB      = flag.Bool("disable_db", false, "disable event indexing")
		observerRemote = flag.Bool("observer_remote", false, "accept observer clients from non-loopback addresses")
		sparringN      = flag.Int("sparring", 0, "scripted sparring players per partition (0 disables)")
		quietEngines   = flag.Bool("quiet_engines", false, "silence per-partition engine logs")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	pp := strings.TrimSpace(*partitionsPath)
	if pp == "" {
		pp = filepath.Join(*configDir, "partitions.yaml")
	}
	if _, err := os.Stat(pp); err != nil {
		logger.Printf("partitions config not found (%s); running a single default partition", pp)
		pp = ""
	}
	pcfg, err := partition.Load(pp)
	if err != nil {
		logger.Fatalf("load partitions: %v", err)
	}

	mirror, err := buildR2MirrorRuntime(*dataDir, logger)
	if err != nil {
		logger.Fatalf("init r2 mirror: %v", err)
	}
	defer mirror.Close()

	journal := persistlog.NewEventJournal(filepath.Join(*dataDir, "journal"), persistlog.JournalOptions{
		Logger:       logger,
		OnFileClosed: mirror.Enqueue,
	})

	idx, err := openRuntimeIndex(*dataDir, *serverID, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}

	var rts map[string]*partition.Runtime
	hub := observer.NewHub(func() (string, []observerproto.PartitionInfo) {
		return pcfg.DefaultPartitionID, partitionInfo(rts)
	}, observer.Options{AllowRemote: *observerRemote, Logger: logger})

	sinks := []engine.Sink{journal, hub}
	if idx != nil {
		sinks = append(sinks, idx)
	}
	var engineLogs io.Writer = os.Stdout
	if *quietEngines {
		engineLogs = nil
	}
	rts, err = partition.Build(pcfg, partition.Options{Tuning: tune, Sinks: sinks, LogOutput: engineLogs})
	if err != nil {
		logger.Fatalf("build partitions: %v", err)
	}
	mgr, err := partition.NewManager(pcfg, rts, logger)
	if err != nil {
		logger.Fatalf("partition manager: %v", err)
	}
	if idx != nil {
		if err := idx.UpsertTuning(tune, mgr.PartitionIDs()); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	mgr.Start(ctx)
	if *sparringN > 0 {
		startSparring(ctx, mgr, *sparringN, logger)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(mgr, hub, sinkStats{journal: journal, index: idx, mirror: mirror}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s partitions=%v", *addr, mgr.PartitionIDs())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
	}

	// Engines first: closing them emits the final destroy and revert events.
	mgr.Close()
	if idx != nil {
		_ = idx.Close()
	}
	if err := journal.Close(); err != nil {
		logger.Printf("journal close: %v", err)
	}
	logger.Printf("stopped")
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
