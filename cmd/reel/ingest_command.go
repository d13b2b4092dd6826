package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"reel/internal/config"
	"reel/internal/ingest"
	"reel/internal/media"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var (
		fileType  string
		profiles  []string
		prefix    string
		ext       string
		owner     string
		jsonInput bool
		wait      bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a base64 data URI read from stdin",
		Long: "Reads a data URI (or bare base64) from stdin, stages it in the temp\n" +
			"directory and submits it like an uploaded file. With --json the input\n" +
			"must be a JSON string.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			parsedType, err := media.ParseFileType(fileType)
			if err != nil {
				return err
			}
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			var data []byte
			if jsonInput {
				data, err = ingest.DecodePayload(json.RawMessage(raw))
			} else {
				data, err = ingest.ParseDataURI(strings.TrimSpace(string(raw)))
			}
			if err != nil {
				return err
			}

			rt, err := ctx.openRuntime(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			tmp := ingest.TemporaryFile{
				Dir:       cfg.Paths.TempDir,
				Prefix:    prefix,
				Extension: ext,
				FileType:  parsedType,
				Profiles:  profiles,
				Owner:     owner,
				Logger:    rt.logger,
			}
			m, err := tmp.Save(cmd.Context(), rt.service, data)
			if err != nil {
				return err
			}
			return reportSubmitted(cmd, cfg, rt, m, wait || cfg.Queue.Backend == config.QueueMemory)
		},
	}

	cmd.Flags().StringVarP(&fileType, "type", "t", "snapshot", "Media type (audio, video, snapshot)")
	cmd.Flags().StringArrayVarP(&profiles, "profile", "p", nil, "Encoding profile name (repeatable)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Staging file name prefix")
	cmd.Flags().StringVar(&ext, "ext", "", "Staging file extension (default: detected, else \"media\")")
	cmd.Flags().StringVar(&owner, "owner", "", "Owning user")
	cmd.Flags().BoolVar(&jsonInput, "json", false, "Treat stdin as a JSON string payload")
	cmd.Flags().BoolVar(&wait, "wait", false, "Process the tasks in this process and wait for completion")
	return cmd
}
