package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExtractCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file>",
		Short: "只提取并输出规范化后的文本",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analyzer, err := opts.analyzer(cmd)
			if err != nil {
				return err
			}
			text, err := analyzer.ExtractText(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
}
