package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/yuqie6/ResourceTally/internal/dto"
	"github.com/yuqie6/ResourceTally/internal/eventbus"
	"github.com/yuqie6/ResourceTally/internal/observability"
	"github.com/yuqie6/ResourceTally/internal/pkg/buildinfo"
	"github.com/yuqie6/ResourceTally/internal/pkg/config"
	"github.com/yuqie6/ResourceTally/internal/repository"
	"github.com/yuqie6/ResourceTally/internal/service"
)

// Core 持有跨二进制共享的核心依赖
type Core struct {
	Cfg       *config.Config
	DB        *repository.Database
	LogCloser io.Closer
	Hub       *eventbus.Hub
	Metrics   *observability.Metrics
	StartedAt time.Time

	Repos struct {
		Target       *repository.TargetRepository
		Contribution *repository.ContributionRepository
		ActionType   *repository.ActionTypeRepository
		Resource     *repository.ResourceRepository
		Dashboard    *repository.DashboardRepository
		Setting      *repository.SettingRepository
		Progress     *repository.ProgressRepository
	}

	Services struct {
		Aggregator *service.Aggregator
		Ledger     *service.LedgerService
		Catalog    *service.CatalogService
		Dashboards *service.DashboardService
		Reports    *service.ReportService
		Reconcile  *service.ReconcileService
	}
}

// NewCore 构建核心依赖（不连接聊天平台，不启动后台任务）
func NewCore(cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logCloser, _ := config.SetupLogger(config.LoggerOptions{
		Level:     cfg.App.LogLevel,
		Path:      cfg.App.LogPath,
		Component: filepath.Base(os.Args[0]),
	})

	db, err := repository.NewDatabase(repository.Options{
		Driver:          cfg.Storage.Driver,
		Path:            cfg.Storage.DBPath,
		DSN:             cfg.Storage.DSN,
		MaxIdleConns:    cfg.Storage.MaxIdleConns,
		MaxOpenConns:    cfg.Storage.MaxOpenConns,
		ConnMaxLifetime: cfg.Storage.ConnMaxLifetimeDuration(),
	})
	if err != nil {
		if logCloser != nil {
			_ = logCloser.Close()
		}
		return nil, err
	}

	return NewCoreWith(cfg, db, logCloser), nil
}

// NewCoreWith 用已打开的数据库组装依赖
func NewCoreWith(cfg *config.Config, db *repository.Database, logCloser io.Closer) *Core {
	c := &Core{
		Cfg:       cfg,
		DB:        db,
		LogCloser: logCloser,
		Hub:       eventbus.NewHub(),
		Metrics:   observability.NewMetrics(nil),
		StartedAt: time.Now(),
	}

	c.Hub.SetDropHook(func(evt eventbus.Event) {
		c.Metrics.ObserveDroppedEvent(evt.Type)
		slog.Warn("事件订阅者积压，事件被丢弃", "type", evt.Type, "tenant", evt.TenantID())
	})

	// Repos
	c.Repos.Target = repository.NewTargetRepository(db.DB)
	c.Repos.Contribution = repository.NewContributionRepository(db.DB)
	c.Repos.ActionType = repository.NewActionTypeRepository(db.DB)
	c.Repos.Resource = repository.NewResourceRepository(db.DB)
	c.Repos.Dashboard = repository.NewDashboardRepository(db.DB)
	c.Repos.Setting = repository.NewSettingRepository(db.DB)
	c.Repos.Progress = repository.NewProgressRepository(db.DB)

	// Services
	c.Services.Aggregator = service.NewAggregator(c.Repos.Target, c.Repos.Contribution)
	c.Services.Ledger = service.NewLedgerService(c.Repos.Target, c.Repos.Contribution, c.Repos.ActionType, c.Hub, c.Metrics)
	c.Services.Catalog = service.NewCatalogService(c.Repos.ActionType, c.Repos.Resource, c.Hub, c.Metrics)
	// 展示面在平台连接建立后由 SetSurface 注入
	c.Services.Dashboards = service.NewDashboardService(
		c.Repos.Dashboard,
		c.Services.Aggregator,
		nil,
		c.Hub,
		c.Metrics,
		service.DashboardOptions{
			Title:           cfg.Dashboard.Title,
			BarWidth:        cfg.Dashboard.BarWidth,
			TopContributors: cfg.Dashboard.TopContributors,
			ShowUpdatedAt:   cfg.Dashboard.ShowUpdatedAt,
		},
	)
	c.Services.Reports = service.NewReportService(
		c.Repos.Setting,
		c.Repos.Contribution,
		c.Services.Aggregator,
		nil,
		c.Metrics,
		cfg.App.Location(),
		cfg.Dashboard.BarWidth,
	)
	c.Services.Reconcile = service.NewReconcileService(c.Repos.Progress, c.Hub, c.Metrics)

	return c
}

// Status 运行状态快照
func (c *Core) Status(ctx context.Context, discord dto.DiscordStatusDTO) dto.StatusDTO {
	st := dto.StatusDTO{
		App: dto.AppStatusDTO{
			Name:       c.Cfg.App.Name,
			Version:    c.Cfg.App.Version,
			Commit:     buildinfo.Commit,
			StartedAt:  c.StartedAt.Format(time.RFC3339),
			UptimeSec:  int64(time.Since(c.StartedAt).Seconds()),
			ConfigPath: c.Cfg.Path(),
		},
		Discord: discord,
	}
	if c.DB != nil {
		st.App.SafeMode = c.DB.SafeMode
		st.Storage = dto.StorageStatusDTO{
			Driver:         c.DB.Driver,
			SchemaVersion:  c.DB.SchemaVersion,
			SafeModeReason: c.DB.MigrationError,
		}
	}
	if list, err := c.Services.Dashboards.ListAll(ctx, ""); err == nil {
		st.Dashboard.Registered = len(list)
	}
	st.Dashboard.LastSync = c.Services.Dashboards.LastSync()
	return st
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	var dbErr error
	if c.DB != nil {
		dbErr = c.DB.Close()
	}
	if c.LogCloser != nil {
		_ = c.LogCloser.Close()
	}
	return dbErr
}

// RequireWritable 安全模式下拒绝写操作
func (c *Core) RequireWritable() error {
	return c.DB.RequireWritable()
}
