//go:build integration

package integration

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/altered-tcg-client/internal/testutil"
	"github.com/Sternrassler/altered-tcg-client/pkg/altered"
	"github.com/Sternrassler/altered-tcg-client/pkg/client"
	"github.com/Sternrassler/altered-tcg-client/pkg/ratelimit"
	"github.com/Sternrassler/altered-tcg-client/pkg/report"
	"github.com/Sternrassler/altered-tcg-client/pkg/trade"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: endpoint})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}
	return redisClient, cleanup
}

func newClient(t *testing.T, baseURL string, tracker *ratelimit.Tracker) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig("integration-token")
	cfg.BaseURL = baseURL
	cfg.RateLimiter = tracker
	cfg.Retry = client.RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2,
	}
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestTradeReportFlow runs the full pipeline: paginated listing, a 429 cooldown
// shared through Redis, per-transaction enrichment and both report files.
func TestTradeReportFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAltered()
	defer mock.Close()

	now := time.Now().UTC()
	var txs []any
	for i := range 12 {
		typ := altered.TransactionTypeBuy
		if i%2 == 1 {
			typ = altered.TransactionTypeSell
		}
		id := "tx-" + string(rune('a'+i))
		txs = append(txs, map[string]any{
			"id":     id,
			"date":   now.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
			"status": string(altered.TransactionStatusSucceeded),
			"type":   string(typ),
			"amount": "1",
		})
		mock.SetJSON(altered.PathPaymentDetail+"/"+id, map[string]any{
			"unitPrice": "2.5",
			"quantity":  1,
			"card":      map[string]any{"name": "Card " + id, "imagePath": "https://img/" + id + ".jpg"},
		})
	}
	mock.SetCollection(altered.PathTransactions, txs)
	mock.FailNext(altered.PathTransactions, testutil.NewRateLimitResponse(1), 1)

	tracker := ratelimit.NewTracker(ratelimit.NewRedisStore(redisClient), zerolog.Nop())
	svc := trade.NewService(newClient(t, mock.URL(), tracker), trade.Config{
		EnrichWidth: 4,
		Reports:     report.Options{BaseDir: t.TempDir()},
	})

	ctx := context.Background()
	paths, err := svc.BuildReport(ctx, report.TypeJSONL, nil)
	if err != nil {
		t.Fatalf("BuildReport() error = %v", err)
	}

	for _, path := range []string{paths.Bought, paths.Sold} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if lines := strings.Count(string(data), "\n"); lines != 6 {
			t.Errorf("%s has %d lines, want 6", path, lines)
		}
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Hits != 1 {
		t.Errorf("rate limit hits = %d, want 1", state.Hits)
	}

	agents := mock.UserAgents()
	if agents[0] != client.DefaultUserAgent || agents[1] == client.DefaultUserAgent {
		t.Errorf("User-Agent should rotate after the 429: %q then %q", agents[0], agents[1])
	}
}

// TestSharedCooldownAcrossClients verifies that a cooldown recorded by one
// client delays requests from another client sharing the same Redis.
func TestSharedCooldownAcrossClients(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAltered()
	defer mock.Close()
	mock.SetJSON(altered.PathMe, map[string]string{"id": "u-1"})

	ctx := context.Background()
	first := ratelimit.NewTracker(ratelimit.NewRedisStore(redisClient), zerolog.Nop())
	second := ratelimit.NewTracker(ratelimit.NewRedisStore(redisClient), zerolog.Nop())

	if err := first.RecordRateLimit(ctx, 500*time.Millisecond); err != nil {
		t.Fatalf("RecordRateLimit() error = %v", err)
	}

	users := altered.NewUserRepository(newClient(t, mock.URL(), second))
	start := time.Now()
	if _, err := users.CurrentUser(ctx); err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Errorf("request should wait for the shared cooldown, took %v", elapsed)
	}
}
