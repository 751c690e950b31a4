// Command gw2data curates the acquisition dataset: it walks item requirement
// trees, extracts acquisition methods from the community wiki, resolves names
// against the game API indexes, and writes reviewed YAML (and optionally
// Postgres) records.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/krjackso/gw2-data-repo/internal/acquisition"
	"github.com/krjackso/gw2-data-repo/internal/classify"
	"github.com/krjackso/gw2-data-repo/internal/config"
	"github.com/krjackso/gw2-data-repo/internal/dataset"
	"github.com/krjackso/gw2-data-repo/internal/diskcache"
	"github.com/krjackso/gw2-data-repo/internal/extract"
	"github.com/krjackso/gw2-data-repo/internal/gw2api"
	"github.com/krjackso/gw2-data-repo/internal/health"
	"github.com/krjackso/gw2-data-repo/internal/nameindex"
	"github.com/krjackso/gw2-data-repo/internal/observe"
	"github.com/krjackso/gw2-data-repo/internal/resilience"
	"github.com/krjackso/gw2-data-repo/internal/resolve"
	"github.com/krjackso/gw2-data-repo/internal/treewalk"
	"github.com/krjackso/gw2-data-repo/internal/wiki"
	"github.com/krjackso/gw2-data-repo/pkg/provider/llm"
)

const usage = `Usage: gw2data <command> [flags]

Commands:
  populate <item>...   populate the named items (no requirement traversal)
  tree <item>...       populate the items and everything they require
  index                rebuild the generated name indexes from the game API
  cache                show cache statistics or clear cached entries

Items may be given as numeric ids or display names. Run
"gw2data <command> -h" for command flags.
`

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "populate":
		err = runWalk(ctx, flag.Args()[1:], 0)
	case "tree":
		err = runWalk(ctx, flag.Args()[1:], -1)
	case "index":
		err = runIndex(ctx, flag.Args()[1:])
	case "cache":
		err = runCache(flag.Args()[1:])
	default:
		fmt.Fprintf(os.Stderr, "gw2data: unknown command %q\n\n", cmd)
		flag.Usage()
		return 2
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "gw2data: interrupted")
			return 130
		}
		fmt.Fprintf(os.Stderr, "gw2data: %v\n", err)
		return 1
	}
	return 0
}

// walkDepth picks the effective traversal depth bound. populate forces its
// own depth, so passing -limit alongside it is rejected rather than ignored.
func walkDepth(forced, limitFlag, configured int) (int, error) {
	if forced >= 0 {
		if limitFlag >= 0 {
			return 0, errors.New("-limit only applies to the tree command")
		}
		return forced, nil
	}
	if limitFlag >= 0 {
		return limitFlag, nil
	}
	return configured, nil
}

// runWalk implements both populate (maxDepth forced to 0) and tree
// (maxDepth < 0 means "use configured depth").
func runWalk(ctx context.Context, args []string, maxDepth int) error {
	fs := flag.NewFlagSet("walk", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	limit := fs.Int("limit", -1, "traversal depth bound, tree only (-1 = use config)")
	maxItems := fs.Int("max-items", 0, "max items to process this run (0 = config/unlimited)")
	noStrict := fs.Bool("no-strict", false, "drop unresolvable acquisitions instead of failing the item")
	dryRun := fs.Bool("dry-run", false, "process without writing the dataset")
	force := fs.Bool("force", false, "re-populate items that are already stored")
	failFast := fs.Bool("fail-fast", false, "abort the run on the first failed item")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return errors.New("no items given")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	maxDepth, err = walkDepth(maxDepth, *limit, cfg.Walk.MaxDepth)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "gw2data"})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown error", "err", err)
		}
	}()

	cache, err := diskcache.New(cfg.Paths.CacheDir, logger)
	if err != nil {
		return err
	}

	index, err := nameindex.LoadFiles(nameindex.Files{
		Items:             cfg.Paths.ItemIndex,
		Currencies:        cfg.Paths.CurrencyIndex,
		ItemOverrides:     cfg.Paths.ItemOverrides,
		CurrencyOverrides: cfg.Paths.CurrencyOverrides,
	})
	if err != nil {
		return fmt.Errorf("load name index (run \"gw2data index\" first?): %w", err)
	}

	roots, err := resolveRoots(index, fs.Args())
	if err != nil {
		return err
	}

	api := newAPIClient(cfg, cache, logger)
	wikiOpts := []wiki.Option{
		wiki.WithHTTPClient(&http.Client{
			Transport: &observe.Transport{Source: "wiki"},
			Timeout:   30 * time.Second,
		}),
		wiki.WithCache(cache),
		wiki.WithLogger(logger),
	}
	if cfg.Wiki.BaseURL != "" {
		wikiOpts = append(wikiOpts, wiki.WithBaseURL(cfg.Wiki.BaseURL))
	}
	wikiClient := wiki.New(wikiOpts...)

	provider, err := buildExtractionProvider(cfg)
	if err != nil {
		return err
	}
	extractor := extract.NewLLMExtractor(wikiClient, provider, cfg.Extraction.Provider.Model,
		extract.WithCache(cache),
		extract.WithLogger(logger),
	)

	nodes, err := classify.LoadNodeSet(cfg.Paths.NodeIndex)
	if err != nil {
		return err
	}
	classifier := classify.New(
		classify.WithNodeSet(nodes),
		classify.WithMinConfidence(cfg.Extraction.MinConfidence),
		classify.WithLogger(logger),
	)
	resolver := resolve.New(index, logger)

	store, checkers, err := buildStore(ctx, cfg, *dryRun, logger)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		checkers = append(checkers, health.Checker{
			Name: "cache",
			Check: func(_ context.Context) error {
				_, err := cache.TagStats()
				return err
			},
		})
		startObservabilityServer(ctx, cfg.MetricsAddr, checkers, logger)
	}

	mode := cfg.Walk.Mode
	if *noStrict {
		mode = resolve.ModeLenient
	}
	runLimit := cfg.Walk.Limit
	if *maxItems > 0 {
		runLimit = *maxItems
	}

	walker := treewalk.New(api, extractor, classifier, resolver, store,
		treewalk.WithMode(mode),
		treewalk.WithMaxDepth(maxDepth),
		treewalk.WithLimit(runLimit),
		treewalk.WithForce(*force),
		treewalk.WithFailFast(*failFast),
		treewalk.WithLogger(logger),
	)

	summary, err := walker.Walk(ctx, roots)
	if summary != nil {
		printSummary(summary, *dryRun)
	}
	return err
}

// resolveRoots turns CLI arguments into item ids. Numeric arguments pass
// through; names are normalised and looked up in the item namespace. A name
// matching zero or several ids aborts with the candidate list so the user can
// re-run with an explicit id.
func resolveRoots(index *nameindex.Index, args []string) ([]int, error) {
	// Roots may also arrive as one comma-separated argument.
	var split []string
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			if part = strings.TrimSpace(part); part != "" {
				split = append(split, part)
			}
		}
	}

	roots := make([]int, 0, len(split))
	for _, arg := range split {
		if id, err := strconv.Atoi(arg); err == nil {
			if id <= 0 {
				return nil, fmt.Errorf("item id %d is not positive", id)
			}
			roots = append(roots, id)
			continue
		}
		name := nameindex.CleanName(arg)
		ids := index.Lookup(nameindex.NamespaceItem, name)
		switch len(ids) {
		case 1:
			roots = append(roots, ids[0])
		case 0:
			err := fmt.Errorf("unknown item name %q", arg)
			if suggestions := index.Suggest(nameindex.NamespaceItem, name, 3); len(suggestions) > 0 {
				err = fmt.Errorf("unknown item name %q (did you mean %v?)", arg, suggestions)
			}
			return nil, err
		default:
			return nil, fmt.Errorf("item name %q matches several ids %v: pass an id instead", arg, ids)
		}
	}
	return roots, nil
}

// runIndex rebuilds the generated item and currency name indexes from the
// game API. Overrides and the node index are hand-maintained and untouched.
func runIndex(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	cache, err := diskcache.New(cfg.Paths.CacheDir, logger)
	if err != nil {
		return err
	}
	api := newAPIClient(cfg, cache, logger)

	logger.Info("fetching item id list")
	ids, err := api.AllItemIDs(ctx)
	if err != nil {
		return err
	}
	logger.Info("fetching item pages", "count", len(ids))
	items, err := api.ItemsBulk(ctx, ids)
	if err != nil {
		return err
	}

	entries := make([]nameindex.Entry, len(items))
	for i, it := range items {
		entries[i] = nameindex.Entry{ID: it.ID, Name: it.Name}
	}
	itemIndex, report := nameindex.BuildItemIndex(entries)
	if err := nameindex.WriteItemIndex(cfg.Paths.ItemIndex, itemIndex); err != nil {
		return err
	}
	logger.Info("item index written",
		"path", cfg.Paths.ItemIndex,
		"indexed", report.Indexed,
		"skipped_empty", len(report.SkippedEmpty),
		"cleaned", len(report.CleanedNames),
		"colliding_names", report.CollidingNames,
	)

	currencies, err := api.Currencies(ctx)
	if err != nil {
		return err
	}
	centries := make([]nameindex.Entry, len(currencies))
	for i, c := range currencies {
		centries[i] = nameindex.Entry{ID: c.ID, Name: c.Name}
	}
	currencyIndex, err := nameindex.BuildCurrencyIndex(centries)
	if err != nil {
		return err
	}
	if err := nameindex.WriteCurrencyIndex(cfg.Paths.CurrencyIndex, currencyIndex); err != nil {
		return err
	}
	logger.Info("currency index written",
		"path", cfg.Paths.CurrencyIndex, "currencies", len(currencyIndex))
	return nil
}

// runCache prints per-tag cache statistics, or clears entries with -clear.
func runCache(args []string) error {
	fs := flag.NewFlagSet("cache", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	clear := fs.Bool("clear", false, "remove cached entries instead of printing stats")
	tag := fs.String("tag", "", `limit to one tag ("api", "wiki", or "llm"); empty means all`)
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	cache, err := diskcache.New(cfg.Paths.CacheDir, logger)
	if err != nil {
		return err
	}

	if *clear {
		removed, err := cache.Clear(*tag)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d cached entries\n", removed)
		return nil
	}

	stats, err := cache.TagStats()
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Println("cache is empty")
		return nil
	}
	for tagName, s := range stats {
		if *tag != "" && tagName != *tag {
			continue
		}
		fmt.Printf("%-6s %6d entries %10d bytes\n", tagName, s.Entries, s.Bytes)
	}
	return nil
}

// ── Wiring helpers ────────────────────────────────────────────────────────────

func newAPIClient(cfg *config.Config, cache *diskcache.Cache, logger *slog.Logger) *gw2api.Client {
	opts := []gw2api.Option{
		gw2api.WithHTTPClient(&http.Client{
			Transport: &observe.Transport{Source: "api"},
			Timeout:   30 * time.Second,
		}),
		gw2api.WithCache(cache),
		gw2api.WithLogger(logger),
		gw2api.WithMaxRetries(cfg.API.MaxRetries),
		gw2api.WithConcurrency(cfg.API.Concurrency),
	}
	if cfg.API.BaseURL != "" {
		opts = append(opts, gw2api.WithBaseURL(cfg.API.BaseURL))
	}
	return gw2api.New(opts...)
}

// buildExtractionProvider creates the primary model backend and, when
// fallbacks are configured, wraps the chain in a circuit-breaking fallback
// group.
func buildExtractionProvider(cfg *config.Config) (llm.Provider, error) {
	reg := config.DefaultRegistry()

	primary, err := reg.CreateLLM(cfg.Extraction.Provider)
	if err != nil {
		return nil, fmt.Errorf("create extraction provider %q: %w", cfg.Extraction.Provider.Name, err)
	}
	if len(cfg.Extraction.Fallbacks) == 0 {
		return primary, nil
	}

	group := resilience.NewExtractionFallback(primary, cfg.Extraction.Provider.Name, resilience.FallbackConfig{})
	for _, entry := range cfg.Extraction.Fallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create fallback provider %q: %w", entry.Name, err)
		}
		group.AddFallback(entry.Name, p)
		slog.Info("extraction fallback registered", "name", entry.Name, "model", entry.Model)
	}
	return group, nil
}

// buildStore picks the dataset backend for this run. Dry runs use an
// in-memory store; otherwise the YAML store is authoritative and Postgres,
// when configured, receives a copy of every save.
func buildStore(ctx context.Context, cfg *config.Config, dryRun bool, logger *slog.Logger) (treewalk.Store, []health.Checker, error) {
	if dryRun {
		logger.Info("dry run: dataset writes go to memory only")
		return dataset.NewMemStore(), nil, nil
	}

	yamlStore, err := dataset.NewYAMLStore(cfg.Paths.DataDir)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.PostgresDSN == "" {
		return yamlStore, nil, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	pg := dataset.NewPostgresStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		return nil, nil, err
	}
	logger.Info("postgres export enabled")

	checkers := []health.Checker{{Name: "postgres", Check: pool.Ping}}
	return &teeStore{primary: yamlStore, secondary: pg}, checkers, nil
}

// startObservabilityServer serves /metrics and the health probes for the
// duration of the run. The server lives and dies with the run context.
func startObservabilityServer(ctx context.Context, addr string, checkers []health.Checker, logger *slog.Logger) {
	h := health.New(checkers...)
	h.ServeMetrics(promhttp.Handler())

	mux := http.NewServeMux()
	h.Register(mux)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("observability endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("observability endpoint error", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()
}

// teeStore reads from the primary store and writes every save to both.
type teeStore struct {
	primary   dataset.Store
	secondary dataset.Store
}

func (t *teeStore) Load(ctx context.Context, id int) (*acquisition.Item, bool, error) {
	return t.primary.Load(ctx, id)
}

func (t *teeStore) Save(ctx context.Context, item *acquisition.Item) error {
	if err := t.primary.Save(ctx, item); err != nil {
		return err
	}
	return t.secondary.Save(ctx, item)
}

// ── Output ────────────────────────────────────────────────────────────────────

func printSummary(s *treewalk.Summary, dryRun bool) {
	fmt.Printf("run %s (%s mode) finished in %s\n",
		s.RunID, s.Mode, s.Finished.Sub(s.Started).Round(time.Millisecond))
	fmt.Printf("  done %d, failed %d, skipped %d\n",
		s.Counts[treewalk.StatusDone],
		s.Counts[treewalk.StatusFailed],
		s.Counts[treewalk.StatusSkipped],
	)
	if s.Ambiguous+s.Classification+s.SourceUnavailable+s.Invalid > 0 {
		fmt.Printf("  problems: %d ambiguous, %d classification, %d source unavailable, %d invalid\n",
			s.Ambiguous, s.Classification, s.SourceUnavailable, s.Invalid)
	}
	if s.Truncated {
		fmt.Println("  run truncated by item limit; re-run to continue")
	}
	if dryRun {
		fmt.Println("  dry run: nothing written")
	}
	for _, r := range s.Results {
		if r.Status == treewalk.StatusFailed {
			fmt.Printf("  item %d failed: %v\n", r.ItemID, r.Err)
		}
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
