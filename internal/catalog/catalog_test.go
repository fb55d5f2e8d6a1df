package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cellarcount/cellarcount-backend/internal/catalog"
	"github.com/cellarcount/cellarcount-backend/pkg/errors"
	"github.com/cellarcount/cellarcount-backend/pkg/logger"
)

type countingSource struct {
	costs map[string]decimal.Decimal
	calls int
}

func (s *countingSource) UnitCost(_ context.Context, _, productID string) (decimal.Decimal, error) {
	s.calls++
	cost, ok := s.costs[productID]
	if !ok {
		return decimal.Zero, errors.ProductNotFound(productID)
	}
	return cost, nil
}

func TestCachedSource_FallsBackWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	defer client.Close()

	source := &countingSource{costs: map[string]decimal.Decimal{"gin": decimal.RequireFromString("18.50")}}
	cached := catalog.NewCachedSource(source, client, time.Minute, logger.Nop())

	cost, err := cached.UnitCost(context.Background(), "org-1", "gin")
	require.NoError(t, err)
	assert.Equal(t, "18.5", cost.String())

	_, err = cached.UnitCost(context.Background(), "org-1", "rum")
	assert.True(t, errors.Is(err, errors.ErrProductNotFound))

	assert.Equal(t, "down", cached.Health(context.Background())["status"])
}

func TestCachedSource_ReadThrough(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	defer container.Terminate(ctx)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	defer client.Close()

	source := &countingSource{costs: map[string]decimal.Decimal{"vermouth": decimal.RequireFromString("9.20")}}
	cached := catalog.NewCachedSource(source, client, time.Minute, logger.Nop())

	for i := 0; i < 3; i++ {
		cost, err := cached.UnitCost(ctx, "org-1", "vermouth")
		require.NoError(t, err)
		assert.Equal(t, "9.2", cost.String())
	}
	assert.Equal(t, 1, source.calls)

	require.NoError(t, cached.Invalidate(ctx, "org-1", "vermouth"))
	_, err = cached.UnitCost(ctx, "org-1", "vermouth")
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)

	assert.Equal(t, "up", cached.Health(ctx)["status"])
}
