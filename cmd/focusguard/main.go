package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/config"
	"github.com/example/focusguard/internal/insights"
	"github.com/example/focusguard/internal/logging"
	"github.com/example/focusguard/internal/persistence"
	"github.com/example/focusguard/internal/persistence/memory"
	"github.com/example/focusguard/internal/persistence/sqlite"
	"github.com/example/focusguard/internal/recurrence"
)

// memoryDatabase selects the process-local storage instead of SQLite.
const memoryDatabase = ":memory:"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cli holds state shared by every command once the root pre-run has loaded it.
type cli struct {
	out      io.Writer
	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error

	database string
	jsonOut  bool
}

func newRootCommand(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:           "focusguard",
		Short:         "Block distracting apps now or on a weekly schedule",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.closeLog != nil {
				_ = c.closeLog()
			}
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.database, "db", "", "database path, overrides FOCUSGUARD_DATABASE_PATH")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newServeCommand(c),
		newScheduleCommand(c),
		newLockCommand(c),
		newUnlockCommand(c),
		newLockedCommand(c),
		newBlockedCommand(c),
		newInsightsCommand(c),
		newQuoteCommand(c),
		newUsageCommand(c),
		newMigrateCommand(c),
	)
	return root
}

func (c *cli) load() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.database != "" {
		cfg.DatabasePath = c.database
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	c.cfg = cfg
	c.logger = logger
	c.closeLog = closeLog
	return nil
}

// repositories is the storage behind the services.
type repositories struct {
	schedules   persistence.ScheduleRepository
	manualLocks persistence.ManualLockRepository
	usage       persistence.UsageRepository
	lockEvents  persistence.LockEventRepository
	blocked     persistence.BlockedEventRepository
	quotes      persistence.QuoteRepository
	sqlite      *sqlite.Store
	close       func() error
}

func openRepositories(ctx context.Context, cfg config.Config, logger *slog.Logger) (*repositories, error) {
	if cfg.DatabasePath == memoryDatabase {
		storage := memory.New(cfg.Location)
		return &repositories{
			schedules:   storage,
			manualLocks: storage,
			usage:       storage,
			lockEvents:  storage,
			blocked:     storage,
			quotes:      storage,
			close:       storage.Close,
		}, nil
	}

	store, err := sqlite.Open(ctx, cfg.SQLite(), cfg.Location, logger)
	if err != nil {
		return nil, err
	}
	return &repositories{
		schedules:   store.Schedules,
		manualLocks: store.ManualLocks,
		usage:       store.Usage,
		lockEvents:  store.LockEvents,
		blocked:     store.BlockedEvents,
		quotes:      store.Quotes,
		sqlite:      store,
		close:       store.Close,
	}, nil
}

// services bundles the core components over one storage.
type services struct {
	repos     *repositories
	schedules *application.ScheduleStore
	locks     *application.LockManager
	quotes    *application.QuoteService
	insights  *insights.Aggregator
}

func (c *cli) openServices(ctx context.Context, observer application.LockObserver) (*services, error) {
	repos, err := openRepositories(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, err
	}

	evaluator := recurrence.NewEvaluator(c.cfg.Location)
	aggregator := insights.NewAggregator(repos.usage, repos.lockEvents, insights.Config{
		Location: c.cfg.Location,
		CacheTTL: c.cfg.InsightsCacheTTL,
		Logger:   c.logger,
	})
	schedules := application.NewScheduleStore(repos.schedules, application.ScheduleStoreConfig{
		OwnerID:   c.cfg.OwnerID,
		Evaluator: evaluator,
		Logger:    c.logger,
	})
	locks := application.NewLockManager(schedules, repos.manualLocks, application.LockManagerConfig{
		Evaluator:      evaluator,
		Recorder:       aggregator,
		Observer:       observer,
		Blocked:        repos.blocked,
		MaxLockMinutes: c.cfg.MaxLockMinutes,
		Logger:         c.logger,
	})
	if err := locks.Load(ctx); err != nil {
		_ = repos.close()
		return nil, err
	}

	quotes := application.NewQuoteService(repos.quotes, application.QuoteServiceConfig{Logger: c.logger})

	return &services{repos: repos, schedules: schedules, locks: locks, quotes: quotes, insights: aggregator}, nil
}

func (s *services) Close() error {
	return s.repos.close()
}

// withServices opens the services for one command and closes them afterwards.
func (c *cli) withServices(ctx context.Context, fn func(*services) error) (err error) {
	svc, err := c.openServices(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, svc.Close())
	}()
	return fn(svc)
}
