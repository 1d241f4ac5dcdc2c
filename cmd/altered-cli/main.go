// Command altered-cli lists traded cards and searches the Altered TCG
// marketplace, writing the results as HTML or JSONL reports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/altered-tcg-client/internal/config"
	"github.com/Sternrassler/altered-tcg-client/internal/telemetry"
	"github.com/Sternrassler/altered-tcg-client/pkg/altered"
	"github.com/Sternrassler/altered-tcg-client/pkg/client"
	"github.com/Sternrassler/altered-tcg-client/pkg/logging"
	"github.com/Sternrassler/altered-tcg-client/pkg/metrics"
	"github.com/Sternrassler/altered-tcg-client/pkg/ratelimit"
	"github.com/Sternrassler/altered-tcg-client/pkg/report"
	"github.com/Sternrassler/altered-tcg-client/pkg/trade"
)

const serviceName = "altered-cli"

var errUsage = errors.New("usage")

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	shutdown, err := telemetry.InitTracer(ctx, serviceName, cfg.OtelEndpoint)
	if err != nil {
		log.Warn().Err(err).Msg("Tracing disabled")
	}

	code := 0
	if err := run(ctx, cfg, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			log.Error().Err(err).Msg("Command failed")
		}
		code = 1
	}
	stop()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := shutdown(flushCtx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush traces")
	}
	cancel()

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Warn().Err(err).Str("path", cfg.MetricsTextfile).Msg("Failed to write metrics")
		}
	}

	os.Exit(code)
}

func run(ctx context.Context, cfg config.Config, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return errUsage
	}

	ctx = logging.WithContext(ctx, logging.NewLogger("cli").With().Str("command", args[0]).Logger())

	var err error
	switch args[0] {
	case "list-traded-cards":
		err = listTradedCards(ctx, cfg, args[1:], stdout)
	case "search-cards":
		err = searchCards(ctx, cfg, args[1:], stdout)
	case "whoami":
		err = whoami(ctx, cfg, args[1:], stdout)
	case "help", "-h", "--help":
		usage(stdout)
	default:
		usage(stdout)
		err = fmt.Errorf("unknown command %q", args[0])
	}
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: altered-cli <command> [flags]

Commands:
  list-traded-cards  write bought-cards and sold-cards reports
  search-cards       write a report of marketplace cards matching filters
  whoami             print the account behind the token

Run "altered-cli <command> -h" for command flags.
`)
}

func listTradedCards(ctx context.Context, cfg config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("list-traded-cards", flag.ContinueOnError)
	reportType := fs.String("report-type", string(report.TypeHTML), "report format: html or jsonl")
	oldestDate := fs.String("oldest-date", "", "skip transactions older than this date (YYYY-MM-DD or RFC3339)")
	auth := fs.String("auth", "", "bearer token (default $ALTERED_AUTH)")
	open := fs.Bool("open", false, "open the reports when done")
	if err := fs.Parse(args); err != nil {
		return err
	}

	typ, err := report.ParseType(*reportType)
	if err != nil {
		return err
	}
	floor, err := parseOldestDate(*oldestDate)
	if err != nil {
		return err
	}

	svc, cleanup, err := newService(ctx, cfg, *auth)
	if err != nil {
		return err
	}
	defer cleanup()

	paths, err := svc.BuildReport(ctx, typ, floor)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s: %s\n", trade.BoughtReportName, paths.Bought)
	fmt.Fprintf(stdout, "%s: %s\n", trade.SoldReportName, paths.Sold)
	if *open {
		openReports(ctx, paths.Bought, paths.Sold)
	}
	return nil
}

func searchCards(ctx context.Context, cfg config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("search-cards", flag.ContinueOnError)
	reportType := fs.String("report-type", string(report.TypeHTML), "report format: html or jsonl")
	name := fs.String("name", "", "report name (default generated)")
	sets := fs.String("set", "", "comma-separated card sets, e.g. CORE,ALIZE")
	factions := fs.String("faction", "", "comma-separated factions, e.g. AX,BR")
	rarities := fs.String("rarity", string(altered.RarityUnique), "comma-separated rarities")
	mainCosts := fs.String("main-cost", "", "comma-separated main costs")
	recallCosts := fs.String("recall-cost", "", "comma-separated recall costs")
	maxPrice := fs.Int("max-price", altered.MaxPrice, "highest lowest-offer price, 0 for no cap")
	inSale := fs.Bool("in-sale", true, "only cards with open offers")
	auth := fs.String("auth", "", "bearer token (default $ALTERED_AUTH)")
	open := fs.Bool("open", false, "open the report when done")
	if err := fs.Parse(args); err != nil {
		return err
	}

	typ, err := report.ParseType(*reportType)
	if err != nil {
		return err
	}
	if *maxPrice < 0 || *maxPrice > altered.MaxPrice {
		return fmt.Errorf("max-price must be between 0 and %d (got %d)", altered.MaxPrice, *maxPrice)
	}
	mains, err := parseInts(*mainCosts)
	if err != nil {
		return fmt.Errorf("main-cost: %w", err)
	}
	recalls, err := parseInts(*recallCosts)
	if err != nil {
		return fmt.Errorf("recall-cost: %w", err)
	}

	filter := altered.CardFilter{
		CardSets:    convertList[altered.CardSet](parseList(*sets)),
		Factions:    convertList[altered.Faction](parseList(*factions)),
		Rarities:    convertList[altered.Rarity](parseList(*rarities)),
		MainCosts:   mains,
		RecallCosts: recalls,
		MaxPrice:    *maxPrice,
		InSale:      inSale,
	}

	svc, cleanup, err := newService(ctx, cfg, *auth)
	if err != nil {
		return err
	}
	defer cleanup()

	path, err := svc.SearchCardsReport(ctx, typ, filter, *name)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, path)
	if *open {
		openReports(ctx, path)
	}
	return nil
}

func whoami(ctx context.Context, cfg config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	auth := fs.String("auth", "", "bearer token (default $ALTERED_AUTH)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, cleanup, err := newService(ctx, cfg, *auth)
	if err != nil {
		return err
	}
	defer cleanup()

	user, err := svc.CurrentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s (%s)\n", user.Email, user.ID)
	return nil
}

// newService wires the client stack. The returned cleanup closes the client
// and any Redis connection.
func newService(ctx context.Context, cfg config.Config, authFlag string) (*trade.Service, func(), error) {
	token := strings.TrimSpace(authFlag)
	if token == "" {
		token = cfg.AuthToken
	}

	tracker, closeStore := newRateLimiter(ctx, cfg)

	retry := client.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxAttempts

	c, err := client.New(client.Config{
		BaseURL:     cfg.BaseURL,
		Token:       token,
		Timeout:     cfg.HTTPTimeout,
		Retry:       retry,
		RateLimiter: tracker,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	svc := trade.NewService(c, trade.Config{
		EnrichWidth: cfg.EnrichConcurrency,
		Reports:     report.Options{BaseDir: cfg.ReportDir},
	})
	cleanup := func() {
		c.Close()
		closeStore()
	}
	return svc, cleanup, nil
}

// newRateLimiter shares cooldowns through Redis when REDIS_ADDR is set and
// reachable, and keeps them in memory otherwise.
func newRateLimiter(ctx context.Context, cfg config.Config) (*ratelimit.Tracker, func()) {
	logger := log.With().Str("component", "ratelimit").Logger()
	if cfg.RedisAddr == "" {
		return ratelimit.NewTracker(ratelimit.NewMemoryStore(), logger), func() {}
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, keeping rate limit state in memory")
		redisClient.Close()
		return ratelimit.NewTracker(ratelimit.NewMemoryStore(), logger), func() {}
	}

	logger.Debug().Str("addr", cfg.RedisAddr).Msg("Sharing rate limit state through Redis")
	return ratelimit.NewTracker(ratelimit.NewRedisStore(redisClient), logger), func() { redisClient.Close() }
}

func openReports(ctx context.Context, paths ...string) {
	logger := logging.FromContext(ctx)
	for _, path := range paths {
		if err := openFile(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to open report")
		}
	}
}

// parseOldestDate accepts a calendar date (UTC midnight) or an RFC3339 time.
// An empty value means no floor.
func parseOldestDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid oldest-date %q: want YYYY-MM-DD or RFC3339", raw)
	}
	return &t, nil
}

func parseList(raw string) []string {
	var values []string
	for _, item := range strings.Split(raw, ",") {
		if value := strings.ToUpper(strings.TrimSpace(item)); value != "" {
			values = append(values, value)
		}
	}
	return values
}

func parseInts(raw string) ([]int, error) {
	var values []int
	for _, item := range parseList(raw) {
		n, err := strconv.Atoi(item)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", item)
		}
		values = append(values, n)
	}
	return values, nil
}

func convertList[T ~string](values []string) []T {
	out := make([]T, 0, len(values))
	for _, v := range values {
		out = append(out, T(v))
	}
	return out
}
