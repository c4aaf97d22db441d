package db

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"power-grid/algo"
	"power-grid/config"
	"power-grid/model"
)

// 需要真实 PostgreSQL, 未设置 POWERGRID_TEST_DB_HOST 时跳过
func openTestStore(t *testing.T) *Store {
	t.Helper()
	host := os.Getenv("POWERGRID_TEST_DB_HOST")
	if host == "" {
		t.Skip("POWERGRID_TEST_DB_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("POWERGRID_TEST_DB_PORT"))
	if port == 0 {
		port = 5432
	}

	cfg := config.DatabaseConfig{
		Host:          host,
		Port:          port,
		User:          os.Getenv("POWERGRID_TEST_DB_USER"),
		Password:      os.Getenv("POWERGRID_TEST_DB_PASSWORD"),
		Name:          os.Getenv("POWERGRID_TEST_DB_NAME"),
		SSLMode:       "disable",
		MaxRetries:    1,
		RetryInterval: time.Second,
	}
	ctx := context.Background()
	s, err := Open(ctx, cfg, nil)
	require.NoError(t, err)

	require.NoError(t, s.db.Exec("TRUNCATE components, flows RESTART IDENTITY").Error)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_ImportAndResolve(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SeedIfEmpty(ctx, filepath.Join("..", "data", "grid_sample.json")))

	n, err := s.CountComponents(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 11, n)

	// 非空时不重复导入
	require.NoError(t, s.SeedIfEmpty(ctx, filepath.Join("..", "data", "grid_sample.json")))

	c, err := s.GetComponent(ctx, "plant-001")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, model.PowerGeneration, c.Type)
	assert.Equal(t, []string{"Solar"}, []string(c.Labels))

	missing, err := s.GetComponent(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	plants, err := s.ListComponents(ctx, model.PowerGeneration)
	require.NoError(t, err)
	assert.Len(t, plants, 2)

	path, err := algo.NewResolver(s, nil, nil).ResolveUpstreamPath(ctx, "building-001")
	require.NoError(t, err)
	require.Len(t, path, 9)
	assert.Equal(t, "plant-001", path[0].ID)
}

func TestStore_ReimportReplacesFlows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed := filepath.Join("..", "data", "grid_sample.json")

	for i := 0; i < 2; i++ {
		components, flows, err := s.ImportGraph(ctx, seed)
		require.NoError(t, err)
		assert.Equal(t, 11, components)
		assert.Equal(t, 11, flows)
	}

	var n int64
	require.NoError(t, s.db.WithContext(ctx).Model(&model.Flow{}).Count(&n).Error)
	assert.EqualValues(t, 11, n)

	count, err := s.CountComponents(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 11, count)
}
