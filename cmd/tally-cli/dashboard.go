package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/yuqie6/ResourceTally/internal/dto"
	"github.com/yuqie6/ResourceTally/internal/pkg/config"
	"github.com/yuqie6/ResourceTally/internal/schema"
)

// dashboardCmd 看板管理
func dashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "查看、预览与同步看板",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "列出已登记的看板（不指定 --tenant 时列出全部）",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := cmdContext()
			defer cancel()

			items, err := core.Services.Dashboards.ListAll(ctx, tenantID)
			if err != nil {
				fail("查询看板失败", err)
			}
			if len(items) == 0 {
				fmt.Println("暂无看板")
				return
			}
			rows := make([][]string, 0, len(items))
			for _, d := range items {
				source := "-"
				if d.SourceTenantID != nil {
					source = *d.SourceTenantID
				}
				rows = append(rows, []string{
					d.DisplaySurfaceID,
					d.TenantID,
					d.ChannelID,
					source,
					d.Tags.String(),
					humanize.Time(d.CreatedAt),
				})
			}
			fmt.Println(renderTable([]string{"消息", "guild", "频道", "数据源", "标签", "创建"}, rows))
		},
	}

	var tags, title string
	preview := &cobra.Command{
		Use:   "preview",
		Short: "在终端渲染看板，不发布",
		Run: func(cmd *cobra.Command, args []string) {
			tenant := requireTenant()
			filter, err := schema.ParseTagList(tags)
			if err != nil {
				fail("标签非法", err)
			}
			ctx, cancel := cmdContext()
			defer cancel()

			doc, err := core.Services.Dashboards.Preview(ctx, tenant, []string(filter), title)
			if err != nil {
				fail("渲染看板失败", err)
			}
			fmt.Println(renderDocument(doc, previewWidth))
		},
	}
	preview.Flags().StringVar(&tags, "tags", "", "逗号分隔的标签过滤")
	preview.Flags().StringVar(&title, "title", "", "标题")

	sync := &cobra.Command{
		Use:   "sync",
		Short: "通过 Discord REST 同步看板（不指定 --tenant 时同步全部）",
		Run: func(cmd *cobra.Command, args []string) {
			requireWritable()
			ctx, cancel := cmdContext()
			defer cancel()

			report, err := syncDashboards(ctx, core.Services.Dashboards, core.Cfg.Discord.Token, tenantID, restSurface)
			if err != nil {
				fail("同步看板失败", err)
			}
			fmt.Println(formatSyncReport(report))
		},
	}

	remove := &cobra.Command{
		Use:   "rm <message id>",
		Short: "注销看板登记（不删除频道消息）",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			requireWritable()
			ctx, cancel := cmdContext()
			defer cancel()

			if err := core.Services.Dashboards.Remove(ctx, args[0]); err != nil {
				fail("注销看板失败", err)
			}
			fmt.Printf("🗑️  看板 %s 已注销\n", args[0])
		},
	}

	cmd.AddCommand(list, preview, sync, remove)
	return cmd
}

// reportCmd 每日报告
func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "每日报告设置与预览",
	}

	var channel, at string
	var disable bool
	set := &cobra.Command{
		Use:   "set",
		Short: "设置自动日报的频道与时间",
		Run: func(cmd *cobra.Command, args []string) {
			tenant := requireTenant()
			requireWritable()
			ctx, cancel := cmdContext()
			defer cancel()

			setting, err := core.Services.Reports.Get(ctx, tenant)
			if err != nil {
				fail("读取日报设置失败", err)
			}
			if channel != "" {
				setting.ChannelID = channel
			}
			if at != "" {
				setting.Time = at
			}
			setting.Enabled = !disable
			if err := core.Services.Reports.Configure(ctx, tenant, setting); err != nil {
				fail("保存日报设置失败", err)
			}
			if disable {
				fmt.Println("⏸️  自动日报已关闭")
				return
			}
			fmt.Printf("✅ 自动日报将于每天 %s 发送到频道 %s\n", setting.Time, setting.ChannelID)
		},
	}
	set.Flags().StringVar(&channel, "channel", "", "频道 ID")
	set.Flags().StringVar(&at, "time", "", "发送时间 HH:MM（配置时区）")
	set.Flags().BoolVar(&disable, "disable", false, "关闭自动日报")

	show := &cobra.Command{
		Use:   "show",
		Short: "查看自动日报设置",
		Run: func(cmd *cobra.Command, args []string) {
			tenant := requireTenant()
			ctx, cancel := cmdContext()
			defer cancel()

			setting, err := core.Services.Reports.Get(ctx, tenant)
			if err != nil {
				fail("读取日报设置失败", err)
			}
			if !setting.Enabled {
				fmt.Println("自动日报未启用")
				return
			}
			last := setting.LastReportDate
			if last == "" {
				last = "从未"
			}
			fmt.Printf("📅 频道 %s，每天 %s，上次发送: %s\n", setting.ChannelID, setting.Time, last)
		},
	}

	var date string
	preview := &cobra.Command{
		Use:   "preview",
		Short: "在终端渲染某日的日报",
		Run: func(cmd *cobra.Command, args []string) {
			tenant := requireTenant()
			if date == "" {
				date = time.Now().In(core.Cfg.App.Location()).Format("2006-01-02")
			}
			ctx, cancel := cmdContext()
			defer cancel()

			doc, err := core.Services.Reports.Build(ctx, tenant, date)
			if err != nil {
				fail("生成日报失败", err)
			}
			fmt.Println(renderDocument(doc, previewWidth))
		},
	}
	preview.Flags().StringVarP(&date, "date", "d", "", "日期 YYYY-MM-DD（默认今天）")

	cmd.AddCommand(set, show, preview)
	return cmd
}

// reconcileCmd 对账
func reconcileCmd() *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "检查进度缓存与贡献账本是否一致（不指定 --tenant 时检查全部）",
		Run: func(cmd *cobra.Command, args []string) {
			if fix {
				requireWritable()
			}
			ctx, cancel := cmdContext()
			defer cancel()

			drift, err := core.Services.Reconcile.Check(ctx, tenantID, fix)
			if err != nil {
				fail("对账失败", err)
			}
			if len(drift) == 0 {
				fmt.Println("✅ 进度缓存与账本一致")
				return
			}
			for _, d := range drift {
				mark := "⚠️ "
				if d.Fixed {
					mark = "🔧"
				}
				fmt.Printf("%s [%s] %s / %s：缓存 %d，账本 %d\n",
					mark, d.TenantID, d.Action, d.Resource, d.CachedAmount, d.LedgerAmount)
			}
			if !fix {
				fmt.Printf("\n发现 %d 处漂移，使用 --fix 按账本修复\n", len(drift))
				return
			}
			refreshDashboards(ctx, fixedTenants(drift)...)
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "按账本合计修复缓存")
	return cmd
}

// fixedTenants 按首次出现顺序返回已修复漂移所属的 guild
func fixedTenants(drift []dto.DriftDTO) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range drift {
		if !d.Fixed {
			continue
		}
		if _, ok := seen[d.TenantID]; ok {
			continue
		}
		seen[d.TenantID] = struct{}{}
		out = append(out, d.TenantID)
	}
	return out
}

// configCmd 配置文件
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "配置文件工具",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "写入默认配置文件",
		Run: func(cmd *cobra.Command, args []string) {
			path := cfgFile
			if path == "" {
				p, err := config.DefaultConfigPath()
				if err != nil {
					fail("获取默认配置路径失败", err)
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				fmt.Printf("⚠️  %s 已存在，使用 --force 覆盖\n", path)
				return
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				fail("检查配置文件失败", err)
			}
			if err := config.WriteFile(path, config.Default()); err != nil {
				fail("写入配置失败", err)
			}
			fmt.Printf("✅ 已写入 %s\n", path)
			fmt.Println("   discord.token 默认读取环境变量 DISCORD_TOKEN")
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "覆盖已有文件")

	cmd.AddCommand(initCmd)
	return cmd
}
