package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/yuqie6/ResourceTally/internal/service"
)

// actionCmd 动作类型管理
func actionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action",
		Short: "管理动作类型（mining、hauling 等）",
	}

	var in service.ActionTypeInput
	bind := func(c *cobra.Command) {
		c.Flags().StringVar(&in.DisplayName, "display", "", "显示名（默认同系统名）")
		c.Flags().StringVar(&in.Unit, "unit", "", "单位，如 SCU")
		c.Flags().StringVar(&in.Emoji, "emoji", "", "图标")
	}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "新建动作类型",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			requireWritable()
			ctx, cancel := cmdContext()
			defer cancel()

			in.Name = args[0]
			at, err := core.Services.Catalog.CreateActionType(ctx, in)
			if err != nil {
				fail("新建动作类型失败", err)
			}
			fmt.Printf("✅ 动作类型 %s 已创建（单位 %s）\n", at.Name, at.Unit)
		},
	}
	bind(add)

	update := &cobra.Command{
		Use:   "update <name>",
		Short: "更新显示名/单位/图标",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			requireWritable()
			ctx, cancel := cmdContext()
			defer cancel()

			in.Name = args[0]
			at, err := core.Services.Catalog.UpdateActionType(ctx, in)
			if err != nil {
				fail("更新动作类型失败", err)
			}
			fmt.Printf("✅ 动作类型 %s 已更新\n", at.Name)
		},
	}
	bind(update)

	list := &cobra.Command{
		Use:   "list",
		Short: "列出动作类型",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := cmdContext()
			defer cancel()

			items, err := core.Services.Catalog.ListActionTypes(ctx)
			if err != nil {
				fail("查询动作类型失败", err)
			}
			if len(items) == 0 {
				fmt.Println("暂无动作类型，使用 tally action add 创建")
				return
			}
			rows := make([][]string, 0, len(items))
			for _, at := range items {
				rows = append(rows, []string{at.Emoji + " " + at.Name, at.DisplayName, at.Unit})
			}
			fmt.Println(renderTable([]string{"名称", "显示名", "单位"}, rows))
		},
	}

	remove := &cobra.Command{
		Use:   "rm <name>",
		Short: "删除未被引用的动作类型",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			requireWritable()
			ctx, cancel := cmdContext()
			defer cancel()

			if err := core.Services.Catalog.DeleteActionType(ctx, args[0]); err != nil {
				fail("删除动作类型失败", err)
			}
			fmt.Printf("🗑️  动作类型 %s 已删除\n", args[0])
		},
	}

	cmd.AddCommand(add, update, list, remove)
	return cmd
}

// resourceCmd 资源管理
func resourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resource",
		Short: "管理 guild 下的可采集资源",
	}

	var action, emoji string

	add := &cobra.Command{
		Use:   "add <display name>",
		Short: "新建资源，系统值由显示名生成",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			tenant := requireTenant()
			requireWritable()
			ctx, cancel := cmdContext()
			defer cancel()

			res, err := core.Services.Catalog.CreateResource(ctx, service.ResourceInput{
				TenantID: tenant,
				Action:   action,
				Name:     args[0],
				Emoji:    emoji,
			})
			if err != nil {
				fail("新建资源失败", err)
			}
			fmt.Printf("✅ 资源 %s（%s）已创建，ID=%d\n", res.Name, res.Value, res.ID)
			refreshDashboards(ctx, tenant)
		},
	}
	add.Flags().StringVarP(&action, "action", "a", "", "所属动作类型")
	add.Flags().StringVar(&emoji, "emoji", "", "图标")
	_ = add.MarkFlagRequired("action")

	list := &cobra.Command{
		Use:   "list",
		Short: "列出资源",
		Run: func(cmd *cobra.Command, args []string) {
			tenant := requireTenant()
			ctx, cancel := cmdContext()
			defer cancel()

			items, err := core.Services.Catalog.ListResources(ctx, tenant, action)
			if err != nil {
				fail("查询资源失败", err)
			}
			if len(items) == 0 {
				fmt.Println("暂无资源")
				return
			}
			rows := make([][]string, 0, len(items))
			for _, r := range items {
				rows = append(rows, []string{strconv.FormatInt(r.ID, 10), r.Emoji + " " + r.Name, r.Value})
			}
			fmt.Println(renderTable([]string{"ID", "名称", "系统值"}, rows))
		},
	}
	list.Flags().StringVarP(&action, "action", "a", "", "按动作类型过滤")

	remove := &cobra.Command{
		Use:   "rm <id>",
		Short: "删除资源",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			tenant := requireTenant()
			requireWritable()
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				fail("资源 ID 非法", err)
			}
			ctx, cancel := cmdContext()
			defer cancel()

			if err := core.Services.Catalog.DeleteResource(ctx, tenant, id); err != nil {
				fail("删除资源失败", err)
			}
			fmt.Printf("🗑️  资源 %d 已删除\n", id)
			refreshDashboards(ctx, tenant)
		},
	}

	cmd.AddCommand(add, list, remove)
	return cmd
}
