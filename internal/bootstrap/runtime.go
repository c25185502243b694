package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"github.com/yuqie6/ResourceTally/internal/dto"
	"github.com/yuqie6/ResourceTally/internal/httpapi"
	"github.com/yuqie6/ResourceTally/internal/pkg/config"
	"github.com/yuqie6/ResourceTally/internal/platform/discord"
	"github.com/yuqie6/ResourceTally/internal/service"
	"golang.org/x/sync/errgroup"
)

// BotRuntime 包含 bot 进程需要启动的平台连接与后台任务
type BotRuntime struct {
	*Core
	cfgPath string

	Bot    *discord.Bot // 未配置 token 时为 nil
	Worker *service.SyncWorker
	HTTP   *httpapi.Server
}

// NewBotRuntime 构建 bot 运行时（不启动）
func NewBotRuntime(cfgPath string) (*BotRuntime, error) {
	core, err := NewCore(cfgPath)
	if err != nil {
		return nil, err
	}

	rt := &BotRuntime{Core: core, cfgPath: cfgPath}
	rt.Worker = service.NewSyncWorker(core.Hub, core.Services.Dashboards, core.Metrics)

	if core.Cfg.Discord.Token != "" {
		bot, err := discord.New(discord.Options{
			Token: core.Cfg.Discord.Token,
			AppID: core.Cfg.Discord.AppID,
		}, discord.Services{
			Ledger:     core.Services.Ledger,
			Aggregator: core.Services.Aggregator,
			Dashboards: core.Services.Dashboards,
			Reports:    core.Services.Reports,
		})
		if err != nil {
			core.Close()
			return nil, err
		}
		rt.Bot = bot
		core.Services.Dashboards.SetSurface(bot.Surface())
		core.Services.Reports.SetPoster(bot.Surface())
	} else {
		slog.Warn("discord.token 未配置，只启动本地任务与运维接口")
	}

	if core.Cfg.HTTP.Enabled {
		rt.HTTP = httpapi.New(httpapi.Deps{
			Name:       core.Cfg.App.Name,
			Version:    core.Cfg.App.Version,
			Aggregator: core.Services.Aggregator,
			Dashboards: core.Services.Dashboards,
			Hub:        core.Hub,
			Metrics:    core.Metrics,
			Status:     rt.Status,
		}, httpapi.Options{ListenAddr: core.Cfg.HTTP.ListenAddr})
	}
	return rt, nil
}

// Status 运行状态快照（含平台连接状态）
func (rt *BotRuntime) Status(ctx context.Context) dto.StatusDTO {
	st := dto.DiscordStatusDTO{Enabled: rt.Bot != nil}
	if rt.Bot != nil {
		st.Connected = rt.Bot.Connected()
	}
	return rt.Core.Status(ctx, st)
}

// Run 启动全部组件，阻塞直到 ctx 取消或任一组件失败
func (rt *BotRuntime) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if err := config.Watch(rt.cfgPath, func(cfg *config.Config) {
		config.SetLogLevel(cfg.App.LogLevel)
	}); err != nil {
		slog.Warn("监听配置文件失败", "error", err)
	}

	if rt.HTTP != nil {
		g.Go(func() error { return rt.HTTP.Run(ctx) })
	}

	if rt.DB != nil && rt.DB.SafeMode {
		// 安全模式：只保留运维接口用于诊断，不启动任何写库链路
		slog.Error("数据库处于安全模式，后台任务未启动", "reason", rt.DB.MigrationError)
		return g.Wait()
	}

	g.Go(func() error { return rt.Worker.Run(ctx) })

	if rt.Bot != nil {
		g.Go(func() error { return rt.Bot.Run(ctx) })
		g.Go(func() error {
			interval := time.Duration(rt.Cfg.Report.CheckIntervalSec) * time.Second
			return rt.Services.Reports.Run(ctx, interval)
		})
	}

	if mins := rt.Cfg.Reconcile.IntervalMin; mins > 0 {
		autoFix := rt.Cfg.Reconcile.AutoFix
		g.Go(func() error {
			runPeriodic(ctx, time.Duration(mins)*time.Minute, func() {
				if _, err := rt.Services.Reconcile.Check(ctx, "", autoFix); err != nil && ctx.Err() == nil {
					slog.Warn("定时对账失败", "error", err)
				}
			})
			return nil
		})
	}

	return g.Wait()
}

// runPeriodic 定时执行函数
func runPeriodic(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
