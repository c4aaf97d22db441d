package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"power-grid/algo"
	"power-grid/db"
	"power-grid/model"
	"power-grid/utils"
)

// traceCmd 在命令行打印组件的供电链
func traceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trace <component-id>",
		Short: "打印从电源到组件的最长供电链",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			grid, err := a.openGrid(cmd.Context())
			if err != nil {
				return err
			}
			component, err := grid.GetComponent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if component == nil {
				return fmt.Errorf("组件不存在: %s", args[0])
			}

			path, err := algo.NewResolver(grid, a.logger, a.metrics).ResolveUpstreamPath(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(path) == 0 {
				fmt.Fprintf(out, "%s (%s) 未连接到任何电源\n", component.Name, component.ID)
				return nil
			}
			for i, n := range path {
				fmt.Fprintf(out, "%2d. %-24s %-22s %s\n", i, n.ID, n.Type, n.Name)
			}
			return nil
		},
	}
}

// powerCmd 抓取一个区域的电力设施并输出 JSON
func powerCmd() *cobra.Command {
	var statsOnly bool
	cmd := &cobra.Command{
		Use:   "power <south,west,north,east>",
		Short: "查询区域内的电力设施和统计",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			region, err := model.ParseRegion(args[0])
			if err != nil {
				return err
			}
			res, err := a.newPowerService().Power(cmd.Context(), region)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if statsOnly {
				return enc.Encode(res.Stats)
			}
			return enc.Encode(res)
		},
	}
	cmd.Flags().BoolVar(&statsOnly, "stats", false, "只输出统计")
	return cmd
}

// importCmd 将种子 JSON 导入 PostgreSQL
func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "导入供电图数据 (默认使用配置中的种子文件)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			path := a.cfg.Grid.SeedFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("未指定导入文件")
			}
			if _, err := os.Stat(path); err != nil {
				return err
			}

			store, err := db.Open(cmd.Context(), a.cfg.Database, a.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			components, flows, err := store.ImportGraph(cmd.Context(), path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "导入完成: %d 个组件, %d 条供电边\n", components, flows)
			return nil
		},
	}
}

// hashPasswordCmd 生成 ADMIN_PASSWORD_HASH 使用的 bcrypt 哈希
// 未给出参数时从标准输入读取一行, 避免密码留在 shell 历史里
func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "生成运维账号的 bcrypt 密码哈希",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("读取密码失败: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return fmt.Errorf("密码不能为空")
			}

			hash, err := utils.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
