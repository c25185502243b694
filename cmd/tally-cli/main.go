package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuqie6/ResourceTally/internal/bootstrap"
	"github.com/yuqie6/ResourceTally/internal/pkg/apperr"
	"github.com/yuqie6/ResourceTally/internal/pkg/buildinfo"
)

var (
	cfgFile  string
	tenantID string
	core     *bootstrap.Core
)

// 不需要数据库的命令
var noCore = map[string]bool{
	"init": true,
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "tally",
		Version: buildinfo.Version,
		Short:   "Tally - 资源采集进度的本地运维工具",
		Long:    `tally 直接读写 bot 使用的数据库：维护动作类型/资源/目标、查看统计、同步看板与对账。`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noCore[cmd.Name()] {
				return
			}
			var err error
			core, err = bootstrap.NewCore(cfgFile)
			if err != nil {
				slog.Error("初始化失败", "error", err)
				os.Exit(1)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if core != nil {
				core.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVarP(&tenantID, "tenant", "t", os.Getenv("TALLY_TENANT"), "guild ID（默认读取 TALLY_TENANT）")

	rootCmd.AddCommand(actionCmd())
	rootCmd.AddCommand(resourceCmd())
	rootCmd.AddCommand(targetCmd())
	rootCmd.AddCommand(tenantsCmd())
	rootCmd.AddCommand(contributeCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(leaderboardCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Minute)
}

// fail 打印错误并退出；已知错误额外给出面向用户的提示
func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "❌ %s: %v\n", msg, err)
	if apperr.IsKnown(err) {
		fmt.Fprintf(os.Stderr, "   %s\n", apperr.UserMessage(err))
	}
	if core != nil {
		core.Close()
	}
	os.Exit(1)
}

func requireTenant() string {
	if tenantID == "" {
		fmt.Fprintln(os.Stderr, "❌ 请通过 --tenant 或 TALLY_TENANT 指定 guild ID")
		if core != nil {
			core.Close()
		}
		os.Exit(1)
	}
	return tenantID
}

func requireWritable() {
	if err := core.RequireWritable(); err != nil {
		fail("数据库不可写", err)
	}
}
