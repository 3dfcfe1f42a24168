package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/socialcard/internal/app/run"
	"github.com/John-Robertt/socialcard/internal/config"
	"github.com/John-Robertt/socialcard/internal/domain"
	"github.com/John-Robertt/socialcard/internal/infra/fsx"
)

// exitError 让 RunE 把退出码交回 main（usage 错误统一为 2）。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintln(os.Stderr, color.RedString("参数错误："), err)
		fmt.Fprintln(os.Stderr, `使用 "socialcard run --help" 查看详细说明。`)
		return 2
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "socialcard",
		Short: "为编号照片目录批量生成社交分享图",
		Long: `socialcard 扫描 <path> 下的编号目录（例如 100/），把其中的 .tif 源图
与 i.json 中的多语言标题、拍摄日期合成为 <dir>/_to_social.png。

已存在的产物不会被覆盖：重复运行只处理新增照片。`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	return root
}

type runFlags struct {
	format  string
	dryRun  bool
	report  string
	noColor bool
}

func newRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "生成缺失的社交分享图",
		Long: `运行一次完整流程：扫描 -> 规划 -> 逐张生成。

path 缺省时读取 ./socialcard.yaml 中的 path。

示例：
  socialcard run ~/Pictures/catalog
  socialcard run --format jpeg --dry-run
  socialcard run ~/Pictures/catalog --report report.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			code := runCmd(cmd.Context(), path, f, config.CLIArgs{
				Path:      path,
				Format:    f.format,
				FormatSet: cmd.Flags().Changed("format"),
				DryRun:    f.dryRun,
				DryRunSet: cmd.Flags().Changed("dry-run"),
			})
			if code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.format, "format", "", "产物格式：png|jpeg（未指定则读配置文件；最终默认 png）")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "只扫描与校验，不写入任何文件；支持 --dry-run=false 覆盖配置")
	cmd.Flags().StringVar(&f.report, "report", "", "把 RunReport JSON 写入该文件（原子写入）")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "禁用彩色输出")
	return cmd
}

func runCmd(parent context.Context, path string, f runFlags, cli config.CLIArgs) int {
	if parent == nil {
		parent = context.Background()
	}
	// Ctrl-C：当前照片处理完后停止，剩余照片记为 canceled。
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	progressW, interactive := pickProgressWriter()
	initColor(f.noColor, interactive)

	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		rr := reportForConfigError(cwdAbs, path, cli, err)
		writeReportIfRequested(cwdAbs, f.report, rr)
		emitReport(os.Stdout, os.Stderr, isTTY(os.Stdout), rr)
		return 1
	}

	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.ExecuteWithObserver(ctx, eff, obs)

	if err := writeReportIfRequested(cwdAbs, f.report, rr); err != nil {
		emitReport(os.Stdout, os.Stderr, isTTY(os.Stdout), rr)
		return 1
	}
	emitReport(os.Stdout, os.Stderr, isTTY(os.Stdout), rr)

	// 单张照片失败不影响退出码；只有 run 级失败（模板无效、根目录不可读等）返回 1。
	if _, failed := rr.RunLevelFailure(); failed {
		return 1
	}
	return 0
}

func initColor(noColor, interactive bool) {
	if noColor || !interactive {
		color.NoColor = true
	}
}

func summaryLine(rr domain.RunReport) string {
	s := rr.Summary
	return fmt.Sprintf("完成：generated=%d planned=%d skipped=%d ineligible=%d failed=%d",
		s.Generated, s.Planned, s.Skipped, s.Ineligible, s.Failed,
	)
}

// emitReport 输出最终结果。
//
// stdout 是 TTY：摘要写 stdout，失败明细写 stderr。
// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（摘要走 stderr）。
func emitReport(stdout, stderr io.Writer, stdoutTTY bool, rr domain.RunReport) {
	if stdoutTTY {
		fmt.Fprintln(stdout, summaryLine(rr))
		for _, it := range rr.Items {
			if it.Status != domain.StatusFailed {
				continue
			}
			key := "<run>"
			if it.Dir != "" {
				key = fmt.Sprintf("[%d]", it.ID)
			}
			fmt.Fprintf(stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(stderr, summaryLine(rr))
}

func reportForConfigError(cwdAbs, path string, cli config.CLIArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	p := cwdAbs
	if strings.TrimSpace(path) != "" {
		p = path
	}
	rr := domain.RunReport{
		Path:       p,
		Format:     strings.ToLower(strings.TrimSpace(cli.Format)),
		DryRun:     cli.DryRunSet && cli.DryRun,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

// writeReportIfRequested 在指定了 --report 时原子写入报告；写入失败会提示到 stderr。
func writeReportIfRequested(cwdAbs, target string, rr domain.RunReport) error {
	if strings.TrimSpace(target) == "" {
		return nil
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(cwdAbs, target)
	}
	if err := writeReportFile(target, rr); err != nil {
		fmt.Fprintf(os.Stderr, "写入 report 失败：%v\n", err)
		return err
	}
	return nil
}

func writeReportFile(target string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Dir(target), filepath.Base(target), b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
