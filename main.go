package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"power-grid/algo"
	"power-grid/cache"
	"power-grid/config"
	"power-grid/db"
	"power-grid/handler"
	"power-grid/metrics"
	"power-grid/model"
	"power-grid/overpass"
	"power-grid/service"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "power-grid",
		Short:         "电网可视化后端: 地图电力设施、统计和供电溯源",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("POWERGRID_CONFIG"), "YAML 配置文件路径")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "启动 HTTP 服务",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		traceCmd(),
		powerCmd(),
		importCmd(),
		hashPasswordCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

// app 各命令共享的依赖
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Registry
	closers []func() error
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)
	return &app{cfg: cfg, logger: logger, metrics: metrics.NewRegistry()}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("关闭资源失败", "error", err)
		}
	}
}

// openGrid 按配置打开供电图: postgres 或直接读取种子文件
func (a *app) openGrid(ctx context.Context) (handler.GridStore, error) {
	if a.cfg.Grid.Source == "file" {
		g, err := algo.LoadFromJSON(a.cfg.Grid.SeedFile)
		if err != nil {
			return nil, err
		}
		a.logger.Info("供电图已从文件加载", "path", a.cfg.Grid.SeedFile, "components", len(g.Nodes))
		return algo.StaticSource{Graph: g}, nil
	}

	store, err := db.Open(ctx, a.cfg.Database, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

// newPowerService 组装地图数据客户端和两级缓存
func (a *app) newPowerService() *service.PowerService {
	client := overpass.NewClient(overpass.Options{
		Endpoints:      a.cfg.Overpass.Endpoints,
		ConnectTimeout: a.cfg.Overpass.ConnectTimeout,
		RequestTimeout: a.cfg.Overpass.RequestTimeout,
		Logger:         a.logger,
		Metrics:        a.metrics,
	})

	boundaryCache := cache.NewMemory[model.FeatureCollection](a.cfg.Cache.BoundaryTTL)

	var powerCache cache.Store[model.PowerResult]
	if a.cfg.Cache.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: a.cfg.Cache.RedisAddr})
		a.closers = append(a.closers, rdb.Close)
		powerCache = cache.NewRedis[model.PowerResult](rdb, a.cfg.Cache.RedisPrefix, a.cfg.Cache.PowerTTL, a.logger)
		a.logger.Info("电力数据使用 Redis 缓存", "addr", a.cfg.Cache.RedisAddr)
	} else {
		powerCache = cache.NewMemory[model.PowerResult](a.cfg.Cache.PowerTTL, cache.WithMaxEntries(a.cfg.Cache.MaxEntries))
	}

	return service.NewPowerService(client, boundaryCache, powerCache, service.Options{
		BoundaryName:  a.cfg.Boundary.Name,
		BoundaryArea:  a.cfg.Boundary.Area(),
		RoundDecimals: a.cfg.Cache.RoundDecimals,
		FetchTimeout:  a.cfg.Overpass.RequestTimeout,
		Logger:        a.logger,
		Metrics:       a.metrics,
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	grid, err := a.openGrid(ctx)
	if err != nil {
		return err
	}
	// 空库时导入种子数据
	if store, ok := grid.(*db.Store); ok && a.cfg.Grid.SeedFile != "" {
		if err := store.SeedIfEmpty(ctx, a.cfg.Grid.SeedFile); err != nil {
			a.logger.Warn("导入种子数据失败, 溯源接口可能返回空结果", "error", err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	h := handler.New(grid, a.newPowerService(), handler.NewAuth(a.cfg.Auth), a.logger, a.metrics)
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           handler.NewRouter(h, a.cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("服务器启动", "addr", a.cfg.Server.Addr, "auth", a.cfg.Auth.Enabled, "grid", a.cfg.Grid.Source)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("服务器启动失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("正在关闭服务器")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
