package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"reel/internal/config"
	"reel/internal/ingest"
	"reel/internal/media"
	"reel/internal/pipeline"
)

type submitOptions struct {
	fileType    string
	profiles    []string
	title       string
	description string
	owner       string
	keepInput   bool
	wait        bool
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	opts := submitOptions{}

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Upload a file and dispatch its encode tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			fileType, err := media.ParseFileType(opts.fileType)
			if err != nil {
				return err
			}
			if len(opts.profiles) == 0 {
				return fmt.Errorf("at least one --profile is required")
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			src, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer src.Close()

			rt, err := ctx.openRuntime(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			title := strings.TrimSpace(opts.title)
			if title == "" {
				title = ingest.TitleFromFilename(path)
			}
			req := pipeline.SubmitRequest{
				Title:       title,
				Description: opts.description,
				FileType:    fileType,
				Filename:    filepath.Base(path),
				Source:      src,
				Profiles:    opts.profiles,
				Owner:       opts.owner,
			}
			if cmd.Flags().Changed("keep-input") {
				keep := opts.keepInput
				req.KeepInputFile = &keep
			}
			m, err := rt.service.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			return reportSubmitted(cmd, cfg, rt, m, opts.wait || cfg.Queue.Backend == config.QueueMemory)
		},
	}

	cmd.Flags().StringVarP(&opts.fileType, "type", "t", "video", "Media type (audio, video, snapshot)")
	cmd.Flags().StringArrayVarP(&opts.profiles, "profile", "p", nil, "Encoding profile name (repeatable)")
	cmd.Flags().StringVar(&opts.title, "title", "", "Display title (defaults to the file name)")
	cmd.Flags().StringVar(&opts.description, "description", "", "Description")
	cmd.Flags().StringVar(&opts.owner, "owner", "", "Owning user")
	cmd.Flags().BoolVar(&opts.keepInput, "keep-input", false, "Keep the input file after encoding")
	cmd.Flags().BoolVar(&opts.wait, "wait", false, "Process the tasks in this process and wait for completion")
	return cmd
}

// reportSubmitted prints the new media and, when wait is set, processes its
// tasks in-process first.
func reportSubmitted(cmd *cobra.Command, cfg *config.Config, rt *runtime, m *media.Media, wait bool) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Media #%d %q submitted (%s, %d profiles)\n", m.ID, m.Title, m.FileType.Label(), len(m.ProfileIDs))
	if !wait {
		fmt.Fprintf(out, "Encode tasks queued on %q; run `reel worker` to process them\n", cfg.Encode.Queue)
		return nil
	}
	done, err := processUntilComplete(cmd.Context(), rt, m.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Media #%d complete with %d outputs\n", done.ID, len(done.Outputs))
	writeOutputs(out, done)
	return nil
}

func writeOutputs(out io.Writer, m *media.Media) {
	for _, file := range m.Outputs {
		fmt.Fprintf(out, "  %s  %s\n", file.Name, file.URL)
	}
}
