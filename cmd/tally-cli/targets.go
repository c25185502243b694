package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/yuqie6/ResourceTally/internal/render"
	"github.com/yuqie6/ResourceTally/internal/schema"
	"github.com/yuqie6/ResourceTally/internal/service"
)

// targetCmd 目标管理
func targetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "管理采集目标",
	}

	var unit, tags string

	set := &cobra.Command{
		Use:   "set <action> <resource> <amount>",
		Short: "新建或更新目标",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			tenant := requireTenant()
			requireWritable()
			amount, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				fail("目标数量非法", err)
			}

			req := service.TargetRequest{
				TenantID:  tenant,
				Action:    args[0],
				Resource:  args[1],
				Amount:    amount,
				CreatedBy: "cli",
			}
			if cmd.Flags().Changed("unit") {
				req.Unit = &unit
			}
			if cmd.Flags().Changed("tags") {
				parsed, err := schema.ParseTagList(tags)
				if err != nil {
					fail("标签非法", err)
				}
				req.Tags = []string(parsed)
			}

			ctx, cancel := cmdContext()
			defer cancel()
			id, err := core.Services.Ledger.CreateOrUpdateTarget(ctx, req)
			if err != nil {
				fail("设置目标失败", err)
			}
			fmt.Printf("✅ 目标 #%d：%s / %s = %s\n", id, args[0], args[1], render.Amount(amount))
			refreshDashboards(ctx, tenant)
		},
	}
	set.Flags().StringVar(&unit, "unit", "", "单位（默认取动作类型的单位）")
	set.Flags().StringVar(&tags, "tags", "", "逗号分隔的标签")

	list := &cobra.Command{
		Use:   "list",
		Short: "列出目标及进度",
		Run: func(cmd *cobra.Command, args []string) {
			tenant := requireTenant()
			filter, err := schema.ParseTagList(tags)
			if err != nil {
				fail("标签非法", err)
			}
			ctx, cancel := cmdContext()
			defer cancel()

			items, err := core.Services.Aggregator.TargetsWithProgress(ctx, tenant, filter)
			if err != nil {
				fail("查询目标失败", err)
			}
			if len(items) == 0 {
				fmt.Println("暂无目标")
				return
			}
			rows := make([][]string, 0, len(items))
			for _, t := range items {
				rows = append(rows, []string{
					strconv.FormatInt(t.ID, 10),
					t.Action + " / " + t.Resource,
					render.Amount(t.CurrentAmount) + " / " + render.Amount(t.TargetAmount) + " " + t.Unit,
					render.ProgressBar(t.Percentage, core.Cfg.Dashboard.BarWidth) + fmt.Sprintf(" %d%%", t.Percentage),
					strings.Join(t.Tags, ","),
				})
			}
			fmt.Println(renderTable([]string{"ID", "目标", "进度", "", "标签"}, rows))
		},
	}
	list.Flags().StringVar(&tags, "tags", "", "只显示带全部这些标签的目标")

	reset := &cobra.Command{
		Use:   "reset <action> <resource>",
		Short: "清空目标的贡献并把进度归零",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			tenant := requireTenant()
			requireWritable()
			ctx, cancel := cmdContext()
			defer cancel()

			t, err := core.Services.Ledger.FindTarget(ctx, tenant, args[0], args[1])
			if err != nil {
				fail("查询目标失败", err)
			}
			if err := core.Services.Ledger.ResetProgress(ctx, t.ID); err != nil {
				fail("重置进度失败", err)
			}
			fmt.Printf("🔄 %s / %s 的进度已归零\n", t.Action, t.Resource)
			refreshDashboards(ctx, tenant)
		},
	}

	remove := &cobra.Command{
		Use:   "rm <action> <resource>",
		Short: "删除目标及其贡献",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			tenant := requireTenant()
			requireWritable()
			ctx, cancel := cmdContext()
			defer cancel()

			t, err := core.Services.Ledger.FindTarget(ctx, tenant, args[0], args[1])
			if err != nil {
				fail("查询目标失败", err)
			}
			if err := core.Services.Ledger.DeleteTarget(ctx, t.ID); err != nil {
				fail("删除目标失败", err)
			}
			fmt.Printf("🗑️  目标 %s / %s 已删除\n", t.Action, t.Resource)
			refreshDashboards(ctx, tenant)
		},
	}

	var limit int
	history := &cobra.Command{
		Use:   "history <action> <resource>",
		Short: "查看目标最近的贡献流水",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			tenant := requireTenant()
			ctx, cancel := cmdContext()
			defer cancel()

			rows, err := core.Services.Aggregator.History(ctx, tenant, args[0], args[1], limit)
			if err != nil {
				fail("查询贡献流水失败", err)
			}
			if len(rows) == 0 {
				fmt.Println("暂无贡献")
				return
			}
			table := make([][]string, 0, len(rows))
			for _, r := range rows {
				who := r.Username
				if who == "" {
					who = r.UserID
				}
				table = append(table, []string{
					strconv.FormatInt(r.ID, 10),
					who,
					"+" + render.Amount(r.Amount),
					r.Location,
					humanize.Time(time.UnixMilli(r.Timestamp)),
				})
			}
			fmt.Println(renderTable([]string{"ID", "贡献者", "数量", "地点", "时间"}, table))
		},
	}
	history.Flags().IntVarP(&limit, "limit", "n", 20, "显示条数")

	cmd.AddCommand(set, list, reset, remove, history)
	return cmd
}

// tenantsCmd 列出有目标的 guild
func tenantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tenants",
		Short: "列出数据库中拥有目标的 guild",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := cmdContext()
			defer cancel()

			tenants, err := core.Services.Aggregator.Tenants(ctx)
			if err != nil {
				fail("查询 guild 失败", err)
			}
			if len(tenants) == 0 {
				fmt.Println("暂无 guild")
				return
			}
			for _, t := range tenants {
				fmt.Println(t)
			}
		},
	}
}

// contributeCmd 代为记录贡献（补录用）
func contributeCmd() *cobra.Command {
	var userID, username, location string

	cmd := &cobra.Command{
		Use:   "contribute <action> <resource> <amount>",
		Short: "记录一笔贡献",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			tenant := requireTenant()
			requireWritable()
			amount, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				fail("数量非法", err)
			}
			ctx, cancel := cmdContext()
			defer cancel()

			res, err := core.Services.Ledger.AddContribution(ctx, service.AddContributionRequest{
				TenantID: tenant,
				Action:   args[0],
				Resource: args[1],
				Amount:   amount,
				Location: location,
				UserID:   userID,
				Username: username,
			})
			if err != nil {
				fail("记录贡献失败", err)
			}
			fmt.Printf("✅ +%s %s → %s / %s（%d%%）\n",
				render.Amount(amount), res.Unit,
				render.Amount(res.NewCurrentAmount), render.Amount(res.TargetAmount), res.Percentage)
			refreshDashboards(ctx, tenant)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "贡献者用户 ID")
	cmd.Flags().StringVar(&username, "name", "", "贡献者显示名")
	cmd.Flags().StringVar(&location, "location", "", "地点")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// statsCmd 总体统计
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "显示 guild 的总体进度",
		Run: func(cmd *cobra.Command, args []string) {
			tenant := requireTenant()
			ctx, cancel := cmdContext()
			defer cancel()

			st, err := core.Services.Aggregator.OverallStats(ctx, tenant)
			if err != nil {
				fail("统计失败", err)
			}
			width := core.Cfg.Dashboard.BarWidth

			fmt.Printf("📊 %s 总体进度\n\n", tenant)
			fmt.Printf("  目标数:   %d（%d 种资源）\n", st.TotalTargets, st.UniqueResourceTypes)
			fmt.Printf("  完成度:   %s / %s  %s %d%%\n",
				render.Amount(st.TotalCurrent), render.Amount(st.TotalTarget),
				render.ProgressBar(st.OverallPercentage, width), st.OverallPercentage)
			if len(st.PerAction) > 0 {
				fmt.Println("\n  按动作类型:")
				for _, a := range st.PerAction {
					fmt.Printf("    %-12s %s %3d%%  (%d 个目标)\n",
						a.Action, render.ProgressBar(a.Percentage, width), a.Percentage, a.TargetCount)
				}
			}
			if st.Closest != nil {
				fmt.Printf("\n  🏁 最接近完成: %s / %s（%d%%）\n", st.Closest.Action, st.Closest.Resource, st.Closest.Percentage)
			}
			if st.Furthest != nil {
				fmt.Printf("  🐢 差距最大:   %s / %s（%d%%）\n", st.Furthest.Action, st.Furthest.Resource, st.Furthest.Percentage)
			}
		},
	}
}

// leaderboardCmd 贡献排行
func leaderboardCmd() *cobra.Command {
	var action string
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "贡献者排行",
		Run: func(cmd *cobra.Command, args []string) {
			tenant := requireTenant()
			ctx, cancel := cmdContext()
			defer cancel()

			rows, err := core.Services.Aggregator.TopContributors(ctx, tenant, limit, action)
			if err != nil {
				fail("查询排行失败", err)
			}
			fmt.Println(renderDocument(render.Leaderboard(rows, action), previewWidth))
		},
	}
	cmd.Flags().StringVarP(&action, "action", "a", "", "只统计某个动作类型")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "显示条数")
	return cmd
}
