package main

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/processor"
)

// errSomeFailed 批量分析中有文件失败，结果已逐行输出，只需设置退出码
var errSomeFailed = errors.New("部分文件分析失败")

type cliOptions struct {
	configPath string
	logLevel   string

	cfg       *config.Config
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:           "docanalyzer",
		Short:         "提取并分析 PDF/DOCX 简历中的技能、经历、教育和联系方式",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logCloser != nil {
				_ = opts.logCloser.Close()
			}
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "配置文件路径，默认在当前目录等位置查找")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "覆盖配置中的日志级别")

	root.AddCommand(newAnalyzeCmd(opts), newExtractCmd(opts), newProfileCmd(opts), newInitConfigCmd())
	return root
}

// setup 加载配置并初始化日志。日志写到 stderr，stdout 只输出结果。
func (o *cliOptions) setup(stderr io.Writer) error {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Logger.Level = o.logLevel
	} else if os.Getenv("LOG_LEVEL") == "" && cfg.Logger.File == "" {
		// 命令行默认只显示警告以上
		cfg.Logger.Level = "warn"
	}
	closer, err := logger.InitWithWriter(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		TimeFormat: cfg.Logger.TimeFormat,
		File:       cfg.Logger.File,
	}, stderr)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logCloser = closer
	return nil
}

func (o *cliOptions) analyzer(cmd *cobra.Command) (*processor.DocumentAnalyzer, error) {
	return processor.BuildDocumentAnalyzer(cmd.Context(), &o.cfg.Analyzer)
}
