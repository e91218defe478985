package main

import (
	"errors"

	"github.com/spf13/cobra"

	"resume-analyzer-go/internal/profile"
	"resume-analyzer-go/internal/types"
)

func newProfileCmd(opts *cliOptions) *cobra.Command {
	var pretty, heuristic bool
	cmd := &cobra.Command{
		Use:   "profile <file>",
		Short: "分析文档并用 LLM 生成结构化候选人档案",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analyzer, err := opts.analyzer(cmd)
			if err != nil {
				return err
			}
			result, text, err := analyzer.AnalyzeWithText(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if heuristic {
				p := profile.FromAnalysis(result)
				return writeJSON(cmd.OutOrStdout(), p, pretty)
			}

			gen, err := profile.NewFromConfig(opts.cfg.LLM)
			if errors.Is(err, profile.ErrLLMDisabled) {
				return errors.New("未配置 LLM_API_KEY，可使用 --heuristic 生成启发式档案")
			}
			if err != nil {
				return err
			}
			// 只把确定提取到的联系方式作为已知信息
			known := types.PersonalInfo{
				Email:    result.ContactInfo.Email,
				Phone:    result.ContactInfo.Phone,
				Location: result.ContactInfo.Location,
			}
			p, err := gen.Generate(cmd.Context(), text, known)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), p, pretty)
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "缩进输出 JSON")
	cmd.Flags().BoolVar(&heuristic, "heuristic", false, "不调用 LLM，直接由分析结果生成档案")
	return cmd
}
