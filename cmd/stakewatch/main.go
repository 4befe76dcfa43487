package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stakewatch/stakewatch/internal/api"
	"github.com/stakewatch/stakewatch/internal/common"
	"github.com/stakewatch/stakewatch/internal/config"
	"github.com/stakewatch/stakewatch/internal/crawler"
	"github.com/stakewatch/stakewatch/internal/db"
	"github.com/stakewatch/stakewatch/internal/logger"
	"github.com/stakewatch/stakewatch/internal/metrics"
	"github.com/stakewatch/stakewatch/internal/migrations"
	"github.com/stakewatch/stakewatch/internal/rpc"
	"github.com/stakewatch/stakewatch/internal/scheduler"
	"github.com/stakewatch/stakewatch/internal/store"
)

const (
	version = "1.0.0"
	banner  = `
╔═══════════════════════════════════════════╗
║           StakeWatch v%s               ║
║     Staking Event Crawler and Query API   ║
╚═══════════════════════════════════════════╝
`
)

var (
	configPath    string
	resetContract string
	resetBlock    uint64
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stakewatch",
	Short: "StakeWatch - staking event crawler",
	Long: `StakeWatch continuously crawls staking contract events from an Ethereum
chain, normalizes them into flat transaction records and serves them through
a read-only query API. Crawl progress is checkpointed so restarts resume
exactly where the last durable chunk ended.`,
	Version: version,
	RunE:    runDaemon,
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawler operations",
}

var crawlOnceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single crawl cycle for every contract and exit",
	Long: `Run one crawl cycle per tracked contract, catching up from each
contract's checkpoint to the current chain height, then exit. Useful for
backfills and cron-driven setups.`,
	RunE: runCrawlOnce,
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Checkpoint operations",
}

var checkpointResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset a contract's checkpoint to force a re-crawl",
	Long: `Overwrite the stored checkpoint for a contract. The next cycle
re-crawls from the new checkpoint; already indexed events are deduplicated,
so resetting never produces duplicates.`,
	RunE: runCheckpointReset,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the configuration JSON schema",
	RunE: func(*cobra.Command, []string) error {
		schema, err := config.GenerateSchema()
		if err != nil {
			return fmt.Errorf("failed to generate schema: %w", err)
		}
		fmt.Println(string(schema))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml",
		"path to configuration file")

	checkpointResetCmd.Flags().StringVar(&resetContract, "contract", "", "contract name from the configuration")
	checkpointResetCmd.Flags().Uint64Var(&resetBlock, "block", 0, "block number to reset the checkpoint to")
	_ = checkpointResetCmd.MarkFlagRequired("contract")
	_ = checkpointResetCmd.MarkFlagRequired("block")

	crawlCmd.AddCommand(crawlOnceCmd)
	checkpointCmd.AddCommand(checkpointResetCmd)
	configCmd.AddCommand(configSchemaCmd)

	rootCmd.AddCommand(crawlCmd, checkpointCmd, configCmd)
}

// runtimeDeps holds everything the daemon and the one-shot commands share.
type runtimeDeps struct {
	cfg         *config.Config
	database    *sql.DB
	maintenance db.Maintenance
	client      *rpc.Client
	checkpoints *store.CheckpointStore
	txStore     *store.TransactionStore
	contracts   []*crawler.TrackedContract
	crawler     *crawler.Crawler
}

func setup(ctx context.Context, needRPC bool) (*runtimeDeps, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewComponentLoggerFromConfig(common.ComponentCrawler, cfg.Logging)

	log.Info("running database migrations...")
	if err := migrations.RunMigrations(cfg.DB.Path); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	database, err := db.NewSQLiteDBFromConfig(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	maintenance := db.NewMaintenanceCoordinator(
		cfg.DB.Path,
		database,
		cfg.Maintenance,
		logger.NewComponentLoggerFromConfig(common.ComponentMaintenance, cfg.Logging),
	)

	storeLog := logger.NewComponentLoggerFromConfig(common.ComponentStore, cfg.Logging)
	checkpoints := store.NewCheckpointStore(database, storeLog, maintenance)
	txStore := store.NewTransactionStore(database, storeLog, maintenance)

	contracts, err := crawler.TrackedContractsFromConfig(cfg.Contracts)
	if err != nil {
		return nil, fmt.Errorf("invalid contract configuration: %w", err)
	}

	deps := &runtimeDeps{
		cfg:         cfg,
		database:    database,
		maintenance: maintenance,
		checkpoints: checkpoints,
		txStore:     txStore,
		contracts:   contracts,
	}

	if needRPC {
		log.Info("connecting to Ethereum node...")
		client, err := rpc.NewClient(ctx, cfg.RPC.URL, cfg.RPC.Retry)
		if err != nil {
			return nil, fmt.Errorf("failed to create RPC client: %w", err)
		}
		log.Infof("connected to Ethereum node: %s", cfg.RPC.URL)

		deps.client = client
		deps.crawler = crawler.NewCrawler(client, checkpoints, txStore, cfg.Crawler,
			logger.NewComponentLoggerFromConfig(common.ComponentCrawler, cfg.Logging))
	}

	return deps, nil
}

func (d *runtimeDeps) close() {
	if d.client != nil {
		d.client.Close()
	}
	d.database.Close()
}

func runDaemon(*cobra.Command, []string) error {
	fmt.Printf(banner, version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	deps, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer deps.close()

	cfg := deps.cfg
	log := logger.NewComponentLoggerFromConfig(common.ComponentCrawler, cfg.Logging)

	if err := deps.maintenance.Start(ctx); err != nil {
		return fmt.Errorf("failed to start maintenance coordinator: %w", err)
	}

	var metricsServer *metrics.Server
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics,
			logger.NewComponentLoggerFromConfig(common.ComponentCrawler, cfg.Logging))
		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			if err := metricsServer.Stop(context.Background()); err != nil {
				log.Warnf("failed to stop metrics server: %v", err)
			}
		}()
	}

	sched := scheduler.New(deps.crawler, deps.contracts, cfg.Crawler.Interval.Duration,
		logger.NewComponentLoggerFromConfig(common.ComponentScheduler, cfg.Logging))

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return sched.Run(ctx)
	})

	if cfg.Crawler.WatchHeads {
		watcher := scheduler.NewHeadWatcher(deps.client, sched,
			logger.NewComponentLoggerFromConfig(common.ComponentScheduler, cfg.Logging))
		group.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	if cfg.API != nil && cfg.API.Enabled {
		apiServer := api.NewServer(cfg.API, deps.txStore, deps.checkpoints,
			logger.NewComponentLoggerFromConfig(common.ComponentAPI, cfg.Logging))
		group.Go(func() error {
			return apiServer.Start(ctx)
		})
	}

	log.Info("starting StakeWatch...")

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stakewatch failed: %w", err)
	}

	log.Info("StakeWatch stopped successfully")
	return nil
}

func runCrawlOnce(*cobra.Command, []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	deps, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer deps.close()

	for _, contract := range deps.contracts {
		result, err := deps.crawler.RunCycle(ctx, contract)
		if err != nil {
			return fmt.Errorf("crawl failed for contract %s: %w", contract.Name, err)
		}

		fmt.Printf("%s: processed through block %d (%d chunks, %d events)\n",
			contract.Name, result.ProcessedThrough, result.ChunksProcessed, result.EventsIndexed)

		if err := deps.crawler.VerifyConsistency(ctx, contract); err != nil {
			return err
		}
	}

	return nil
}

func runCheckpointReset(*cobra.Command, []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	deps, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer deps.close()

	var address ethcommon.Address
	found := false
	for _, contract := range deps.contracts {
		if strings.EqualFold(contract.Name, resetContract) {
			address = contract.Address
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("contract %q is not configured", resetContract)
	}

	if err := deps.checkpoints.Reset(address, resetBlock); err != nil {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}

	fmt.Printf("checkpoint for %s reset to block %d\n", resetContract, resetBlock)
	return nil
}
