package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/yuqie6/ResourceTally/internal/dto"
	"github.com/yuqie6/ResourceTally/internal/platform/discord"
	"github.com/yuqie6/ResourceTally/internal/service"
)

var errNoToken = errors.New("未配置 discord.token")

// dashboardSyncer DashboardService 中 CLI 刷新所需的子集
type dashboardSyncer interface {
	SetSurface(surface service.Surface)
	SyncAll(ctx context.Context, tenantID string) (*dto.SyncReportDTO, error)
}

type surfaceFactory func(token string) (service.Surface, error)

func restSurface(token string) (service.Surface, error) {
	s, err := discord.NewRESTSurface(token)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// syncDashboards 连接 Discord REST 并同步 tenant 的看板；tenant 为空时同步全部
func syncDashboards(ctx context.Context, dashboards dashboardSyncer, token, tenant string, connect surfaceFactory) (*dto.SyncReportDTO, error) {
	if token == "" {
		return nil, errNoToken
	}
	surface, err := connect(token)
	if err != nil {
		return nil, fmt.Errorf("连接 Discord 失败: %w", err)
	}
	dashboards.SetSurface(surface)
	return dashboards.SyncAll(ctx, tenant)
}

// printRefresh 变更已提交，刷新失败只提示不退出
func printRefresh(w io.Writer, report *dto.SyncReportDTO, err error) {
	switch {
	case errors.Is(err, errNoToken):
		fmt.Fprintln(w, "⚠️  未配置 discord.token，看板未刷新")
	case err != nil:
		fmt.Fprintf(w, "⚠️  看板刷新失败: %v（稍后可运行 tally dashboard sync）\n", err)
	default:
		fmt.Fprintf(w, "🔄 看板已刷新：更新 %d，清理 %d，跳过 %d\n", report.Updated, report.Pruned, report.Skipped)
	}
}

// refreshDashboards 变更成功后调用。CLI 进程没有同步协程，看板在这里直接刷新
func refreshDashboards(ctx context.Context, tenants ...string) {
	for _, tenant := range tenants {
		report, err := syncDashboards(ctx, core.Services.Dashboards, core.Cfg.Discord.Token, tenant, restSurface)
		printRefresh(os.Stdout, report, err)
		if errors.Is(err, errNoToken) {
			return
		}
	}
}

func formatSyncReport(report *dto.SyncReportDTO) string {
	return fmt.Sprintf("🔄 同步完成（%s）：更新 %d，清理 %d，跳过 %d，耗时 %s",
		report.SyncID, report.Updated, report.Pruned, report.Skipped,
		time.Duration(report.Duration)*time.Millisecond)
}
