package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"reel/internal/config"
	"reel/internal/preflight"
)

const (
	ansiGreen  = "\033[32m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiReset  = "\033[0m"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, storage and encoder binaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			failures := 0
			rows := make([][]string, 0)
			for _, result := range preflight.RunAll(cfg) {
				if !result.Passed {
					failures++
				}
				rows = append(rows, []string{result.Name, statusLabel(result.Passed, false, colorize), result.Detail})
			}
			for _, status := range preflight.CheckSystemDeps(cfg) {
				if !status.Available && !status.Optional {
					failures++
				}
				detail := status.Detail
				if detail == "" {
					detail = status.Command
				}
				rows = append(rows, []string{"Binary: " + status.Name, statusLabel(status.Available, status.Optional, colorize), detail})
			}
			queueDetail := cfg.Queue.Backend
			if cfg.Queue.Backend == config.QueueRedis {
				queueDetail = fmt.Sprintf("redis %s (stream prefix %q)", cfg.Queue.RedisAddr, cfg.Queue.StreamPrefix)
			}
			rows = append(rows, []string{"Task queue", statusLabel(true, false, colorize), queueDetail})

			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			if failures > 0 {
				return fmt.Errorf("%d checks failed", failures)
			}
			return nil
		},
	}
}

func statusLabel(ok, optional, colorize bool) string {
	label, color := "OK", ansiGreen
	switch {
	case !ok && optional:
		label, color = "WARN", ansiYellow
	case !ok:
		label, color = "FAIL", ansiRed
	}
	if !colorize {
		return label
	}
	return color + label + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
