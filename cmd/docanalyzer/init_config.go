package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"resume-analyzer-go/internal/config"
)

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "生成带默认值的示例配置文件（默认 ./config.yaml）",
		Args:  cobra.MaximumNArgs(1),
		// 不加载配置，文件可能还不存在
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.CreateSampleConfig(path); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "已生成示例配置: %s\n", path)
			return err
		},
	}
}
