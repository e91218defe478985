package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"resume-analyzer-go/internal/types"
)

func newAnalyzeCmd(opts *cliOptions) *cobra.Command {
	var pretty, withText bool
	cmd := &cobra.Command{
		Use:   "analyze <file>...",
		Short: "分析文档并逐个输出 JSON 结果",
		Long: `对每个文件输出一行 JSON。失败的文件输出 {"error": "..."}，其余文件继续处理；
只要有一个文件失败，退出码为 1。`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analyzer, err := opts.analyzer(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				var resp any
				result, text, err := analyzer.AnalyzeWithText(cmd.Context(), path)
				switch {
				case err != nil:
					failed++
					resp = types.AnalysisResponse{Error: err.Error()}
				case withText:
					resp = analysisWithText{AnalysisResult: result, File: path, Text: text}
				default:
					resp = types.AnalysisResponse{AnalysisResult: result}
				}
				if err := writeJSON(out, resp, pretty); err != nil {
					return err
				}
			}
			if failed > 0 {
				return errSomeFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "缩进输出 JSON")
	cmd.Flags().BoolVar(&withText, "text", false, "在结果中附带提取出的全文")
	return cmd
}

type analysisWithText struct {
	*types.AnalysisResult
	File string `json:"file"`
	Text string `json:"text"`
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("输出JSON失败: %w", err)
	}
	return nil
}
