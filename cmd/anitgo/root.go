package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"anitgo/pkg/cache"
	"anitgo/pkg/commons"
	"anitgo/pkg/config"
	"anitgo/pkg/db"
	"anitgo/pkg/logging"
	"anitgo/pkg/request"
	"anitgo/pkg/sparql"
	"anitgo/pkg/store"
	"anitgo/pkg/syncer"
	"anitgo/pkg/tracker"
	"anitgo/pkg/version"
	"anitgo/pkg/wikidata"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "anitgo",
	Short:   "Wikidata synchronization for the Turkish monument catalog",
	Version: version.Version,
	Long: `anitgo keeps a local catalog of Turkish cultural-heritage monuments in
sync with Wikidata: bulk SPARQL synchronization, incremental backfill of
incomplete records, Commons photo discovery and reconciliation checks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.yaml", "path to config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "init-config",
		Short: "Write a default config file if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.GenerateDefault(configPath); err != nil {
				return err
			}
			fmt.Println("Config ready at", configPath)
			return nil
		},
	})
}

// app bundles the wired application components. Commands build one,
// use it, and defer close.
type app struct {
	cfg      *config.Config
	store    store.Store
	tracker  *tracker.Tracker
	sparql   *sparql.Client
	entities *wikidata.EntityFetcher
	resolver *wikidata.HierarchyResolver
	commons  *commons.Client
	orch     *syncer.Orchestrator
	recon    *syncer.Reconciler
	sched    *syncer.Scheduler

	closeLog func()
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	closeLog, err := logging.Init(&cfg.Log)
	if err != nil {
		return nil, err
	}

	database, err := db.Init(cfg.DB.Path)
	if err != nil {
		closeLog()
		return nil, err
	}
	st := store.NewSQLiteStore(database)

	trk := tracker.New()
	req := request.New(trk,
		time.Duration(cfg.Request.Timeout),
		cfg.Request.Retries,
		time.Duration(cfg.Request.Backoff.BaseDelay),
		time.Duration(cfg.Request.Backoff.MaxDelay))

	sp := sparql.NewClient(req, cfg.Wikidata.SparqlEndpoint, slog.With("component", "sparql"))
	labels := cache.NewTTLCache(cfg.Wikidata.LabelCacheSize, time.Duration(cfg.Wikidata.LabelCacheTTL))
	ef := wikidata.NewEntityFetcher(req, trk, labels, cfg.Wikidata.APIEndpoint, slog.With("component", "entities"))
	hr := wikidata.NewHierarchyResolver(sp, slog.With("component", "hierarchy"))
	cm := commons.New(req, cfg.Commons.APIEndpoint, cfg.Commons.PageSize, slog.With("component", "commons"))

	orch := syncer.NewOrchestrator(st, sp, ef, hr, trk, cfg.Sync, slog.With("component", "sync"))
	recon := syncer.NewReconciler(st, sp, slog.With("component", "verify"))

	bf := cfg.Backfill
	jobLogger := slog.With("component", "backfill")
	sched := syncer.NewScheduler(bf, jobLogger,
		syncer.NewDescriptionJob(st, ef, bf.BatchSize, jobLogger),
		syncer.NewHierarchyJob(st, hr, bf.BatchSize, jobLogger),
		syncer.NewCommonsJob(st, ef, bf.BatchSize, jobLogger),
		syncer.NewKulturEnvanteriJob(st, ef, bf.BatchSize, jobLogger),
		syncer.NewPhotoJob(st, cm, bf.BatchSize, jobLogger),
		syncer.NewPhotoMetadataJob(st, cm, bf.BatchSize, jobLogger),
		syncer.NewComprehensiveJob(st, ef, bf.BatchSize, jobLogger),
	)

	return &app{
		cfg:      cfg,
		store:    st,
		tracker:  trk,
		sparql:   sp,
		entities: ef,
		resolver: hr,
		commons:  cm,
		orch:     orch,
		recon:    recon,
		sched:    sched,
		closeLog: closeLog,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	a.closeLog()
}

// printUsage dumps the per-provider API counters gathered during a command.
func (a *app) printUsage() {
	snapshot := a.tracker.Snapshot()
	if len(snapshot) == 0 {
		return
	}
	fmt.Println("\nAPI usage:")
	for provider, s := range snapshot {
		fmt.Printf("  %-10s ok=%d failed=%d empty=%d label_cache=%d/%d\n",
			provider, s.APISuccess, s.APIFailures, s.EmptyPages, s.LabelHits, s.LabelHits+s.LabelMisses)
	}
}
