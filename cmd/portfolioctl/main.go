package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/folio-cms/folio/internal/config"
	"github.com/folio-cms/folio/internal/pkg/logger"
	"github.com/folio-cms/folio/internal/repository"
	"github.com/folio-cms/folio/internal/service"
	"github.com/folio-cms/folio/internal/service/translator"
)

const usage = `usage: portfolioctl [-config path] <command> [flags]

commands:
  sweep          delete visits older than the retention horizon
  stats          print visit statistics
  purge-invalid  delete stored visits the current exclusion rules reject
  translate      run translation passes (-entity ID or -pending)
  check-config   load and validate the configuration
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("portfolioctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "Path to YAML config file")
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	logger.Init(cfg.Log.Level)

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "check-config":
		return checkConfig(cfg, stdout)
	case "sweep", "stats", "purge-invalid", "translate":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		global.Usage()
		return 2
	}

	app, err := open(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	defer app.close()

	switch cmd {
	case "sweep":
		return app.sweep(ctx, rest, stdout, stderr)
	case "stats":
		return app.stats(ctx, rest, stdout, stderr)
	case "purge-invalid":
		return app.purgeInvalid(ctx, rest, stdout, stderr)
	default:
		return app.translate(ctx, rest, stdout, stderr)
	}
}

type app struct {
	cfg     *config.Config
	closeDB func()
	visits  *service.VisitService
	sweeper *service.RetentionSweeper
	content *service.ContentService
	orch    *service.Orchestrator
}

func open(cfg *config.Config) (*app, error) {
	db, err := repository.NewDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	visitRepo := repository.NewVisitRepo(db)
	contentRepo := repository.NewContentRepo(db)

	client, err := translator.NewFromConfig(cfg.Translation, nil)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("translation: %w", err)
	}
	orch := service.NewOrchestrator(contentRepo, client, cfg.Translation)

	return &app{
		cfg:     cfg,
		closeDB: func() { _ = sqlDB.Close() },
		visits:  service.NewVisitService(visitRepo, cfg.Visits),
		sweeper: service.NewRetentionSweeper(visitRepo, cfg.Visits),
		content: service.NewContentService(contentRepo, orch, cfg.Translation),
		orch:    orch,
	}, nil
}

func (a *app) close() {
	a.closeDB()
}

func (a *app) sweep(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(stderr)
	days := fs.Int("days", a.cfg.Visits.RetentionDays, "Delete visits older than this many days")
	dryRun := fs.Bool("dry-run", false, "Only count the visits that would be deleted")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *days <= 0 {
		fmt.Fprintln(stderr, "-days must be positive")
		return 2
	}

	sweeper := a.sweeper.WithHorizon(time.Duration(*days) * 24 * time.Hour)
	if *dryRun {
		res, err := sweeper.Preview(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "count failed: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "would delete %d visits older than %s\n", res.Deleted, res.Cutoff.Format(time.RFC3339))
		return 0
	}

	res, err := sweeper.Sweep(ctx)
	if err != nil {
		var sweepErr *service.SweepError
		if errors.As(err, &sweepErr) {
			fmt.Fprintf(stderr, "sweep stopped after deleting %d visits: %v\n", sweepErr.Deleted, sweepErr.Err)
		} else {
			fmt.Fprintf(stderr, "sweep failed: %v\n", err)
		}
		return 1
	}
	fmt.Fprintf(stdout, "deleted %d visits older than %s in %s\n",
		res.Deleted, res.Cutoff.Format(time.RFC3339), res.Duration.Round(time.Millisecond))
	return 0
}

func (a *app) stats(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(stderr)
	top := fs.Int("top", 10, "Number of top pages to list")
	asJSON := fs.Bool("json", false, "Print JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	stats, err := a.visits.Stats(ctx, *top)
	if err != nil {
		fmt.Fprintf(stderr, "stats failed: %v\n", err)
		return 1
	}
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			return 1
		}
		return 0
	}

	fmt.Fprintf(stdout, "total visits:   %d\n", stats.Total)
	fmt.Fprintf(stdout, "public visits:  %d\n", stats.Public)
	fmt.Fprintf(stdout, "admin visits:   %d\n", stats.Admin)
	fmt.Fprintf(stdout, "today:          %d\n", stats.Today)
	fmt.Fprintf(stdout, "last 7 days:    %d\n", stats.LastWeek)
	fmt.Fprintf(stdout, "last 30 days:   %d\n", stats.LastMonth)
	fmt.Fprintf(stdout, "unique IPs:     %d\n", stats.UniqueIPs)
	if stats.OldestVisit != nil && stats.NewestVisit != nil {
		fmt.Fprintf(stdout, "range:          %s .. %s\n",
			stats.OldestVisit.Format(time.RFC3339), stats.NewestVisit.Format(time.RFC3339))
	}
	if len(stats.TopPaths) > 0 {
		fmt.Fprintln(stdout, "\ntop pages:")
		for i, p := range stats.TopPaths {
			fmt.Fprintf(stdout, "%3d. %-50s %d\n", i+1, p.Path, p.Count)
		}
	}
	return 0
}

func (a *app) purgeInvalid(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("purge-invalid", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dryRun := fs.Bool("dry-run", false, "Only count the visits that would be deleted")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	n, err := a.visits.PurgeInvalid(ctx, *dryRun)
	if err != nil {
		fmt.Fprintf(stderr, "purge failed after %d visits: %v\n", n, err)
		return 1
	}
	if *dryRun {
		fmt.Fprintf(stdout, "would delete %d invalid visits\n", n)
	} else {
		fmt.Fprintf(stdout, "deleted %d invalid visits\n", n)
	}
	return 0
}

func (a *app) translate(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	entity := fs.Uint("entity", 0, "Run a pass for one entity")
	pending := fs.Bool("pending", false, "Run a pass for every entity with pending rows")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if (*entity == 0) == !*pending {
		fmt.Fprintln(stderr, "exactly one of -entity or -pending is required")
		return 2
	}
	if !a.orch.Enabled() {
		fmt.Fprintln(stderr, "automatic translation is disabled")
		return 1
	}

	var reports []*service.PassReport
	var err error
	if *pending {
		reports, err = a.content.RunPending(ctx)
	} else {
		var report *service.PassReport
		report, err = a.content.RunEntity(ctx, *entity)
		if report != nil {
			reports = append(reports, report)
		}
	}
	for _, r := range reports {
		fmt.Fprintf(stdout, "entity %d: %d generated, %d failed, %d superseded\n",
			r.EntityID, r.Generated, r.Failed, r.Superseded)
		for _, o := range r.Outcomes {
			if o.Error != "" {
				fmt.Fprintf(stdout, "  %s/%s: %s\n", o.Language, o.Field, o.Error)
			}
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "translate failed: %v\n", err)
		return 1
	}
	return 0
}

func checkConfig(cfg *config.Config, stdout io.Writer) int {
	fmt.Fprintf(stdout, "database:     %s\n", redactDSN(cfg.Database.DSN))
	fmt.Fprintf(stdout, "retention:    %d days (sweep every %d min, batch %d)\n",
		cfg.Visits.RetentionDays, cfg.Visits.CleanupIntervalMinutes, cfg.Visits.SweepBatchSize)
	fmt.Fprintf(stdout, "record:       %s responses\n", cfg.Visits.RecordStatuses)
	if cfg.Translation.Enabled {
		fmt.Fprintf(stdout, "translation:  %s -> %v via %s (timeout %s)\n",
			cfg.Translation.DefaultLanguage, cfg.Translation.TargetLanguages(), cfg.Translation.Provider, cfg.Translation.Timeout())
	} else {
		fmt.Fprintln(stdout, "translation:  disabled")
	}
	fmt.Fprintln(stdout, "config OK")
	return 0
}

// redactDSN hides the password of a database URL. Anything that does not
// parse is withheld entirely.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "<unparseable dsn>"
	}
	if u.Scheme == "sqlite" {
		return "sqlite://" + u.Host + u.Path
	}
	return u.Redacted()
}
