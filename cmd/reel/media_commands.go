package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reel/internal/media"
	"reel/internal/store"
)

func newMediaCommand(ctx *commandContext) *cobra.Command {
	mediaCmd := &cobra.Command{
		Use:   "media",
		Short: "Inspect media entities",
	}
	mediaCmd.AddCommand(newMediaListCommand(ctx))
	mediaCmd.AddCommand(newMediaShowCommand(ctx))
	mediaCmd.AddCommand(newMediaStatsCommand(ctx))
	return mediaCmd
}

type mediaView struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	FileType      string     `json:"file_type"`
	Status        string     `json:"status"`
	Input         string     `json:"input,omitempty"`
	KeepInputFile bool       `json:"keep_input_file"`
	Owner         string     `json:"owner,omitempty"`
	Profiles      []int64    `json:"profiles"`
	Outputs       []fileView `json:"outputs"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type fileView struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	ProfileID int64  `json:"profile_id"`
}

func newMediaView(m *media.Media) mediaView {
	view := mediaView{
		ID:            m.ID,
		Title:         m.Title,
		Description:   m.Description,
		FileType:      string(m.FileType),
		Status:        m.Status(),
		Input:         m.InputName,
		KeepInputFile: m.KeepInputFile,
		Owner:         m.Owner,
		Profiles:      append([]int64{}, m.ProfileIDs...),
		Outputs:       make([]fileView, 0, len(m.Outputs)),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	for _, out := range m.Outputs {
		view.Outputs = append(view.Outputs, fileView{
			ID: out.ID, Title: out.Title, Name: out.Name, URL: out.URL, ProfileID: out.ProfileID,
		})
	}
	return view
}

func newMediaListCommand(ctx *commandContext) *cobra.Command {
	var (
		fileType string
		status   string
		owner    string
		limit    int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List media, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.ListFilter{Status: status, Owner: owner, Limit: limit}
			if strings.TrimSpace(fileType) != "" {
				parsed, err := media.ParseFileType(fileType)
				if err != nil {
					return err
				}
				filter.FileType = parsed
			}
			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				items, err := st.ListMedia(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					views := make([]mediaView, 0, len(items))
					for _, m := range items {
						views = append(views, newMediaView(m))
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No media found")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, m := range items {
					rows = append(rows, []string{
						strconv.FormatInt(m.ID, 10),
						m.Title,
						m.FileType.Label(),
						m.Status(),
						fmt.Sprintf("%d/%d", len(m.Outputs), len(m.ProfileIDs)),
						m.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Type", "Status", "Outputs", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&fileType, "type", "t", "", "Only this media type")
	cmd.Flags().StringVar(&status, "status", "", "Only this status (complete, encoding, idle)")
	cmd.Flags().StringVar(&owner, "owner", "", "Only media owned by this user")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newMediaShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one media entity with its outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid media id %q", args[0])
			}
			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				m, err := st.GetMedia(cmd.Context(), id)
				if err != nil {
					return err
				}
				if m == nil {
					return &media.MediaNotFound{ID: id}
				}
				if asJSON {
					return writeJSON(cmd, newMediaView(m))
				}
				profiles, err := st.ListProfiles(cmd.Context())
				if err != nil {
					return err
				}
				names := make(map[int64]string, len(profiles))
				for _, p := range profiles {
					names[p.ID] = p.Name
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Media #%d: %s\n", m.ID, m.Title)
				if m.Description != "" {
					fmt.Fprintf(out, "Description: %s\n", m.Description)
				}
				fmt.Fprintf(out, "Type: %s\n", m.FileType.Label())
				fmt.Fprintf(out, "Status: %s (encoding=%s encoded=%s uploaded=%s)\n",
					m.Status(), yesNo(m.Encoding), yesNo(m.Encoded), yesNo(m.Uploaded))
				fmt.Fprintf(out, "Input: %s (keep: %s)\n", m.InputName, yesNo(m.KeepInputFile))
				if m.Owner != "" {
					fmt.Fprintf(out, "Owner: %s\n", m.Owner)
				}
				requested := make([]string, 0, len(m.ProfileIDs))
				for _, id := range m.ProfileIDs {
					requested = append(requested, profileLabel(names, id))
				}
				fmt.Fprintf(out, "Profiles: %s\n", strings.Join(requested, ", "))
				if len(m.Outputs) == 0 {
					fmt.Fprintln(out, "Outputs: none yet")
					return nil
				}
				rows := make([][]string, 0, len(m.Outputs))
				for _, file := range m.Outputs {
					rows = append(rows, []string{profileLabel(names, file.ProfileID), file.Name, file.URL})
				}
				fmt.Fprintln(out, renderTable([]string{"Profile", "File", "URL"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func profileLabel(names map[int64]string, id int64) string {
	if name, ok := names[id]; ok {
		return name
	}
	return fmt.Sprintf("#%d", id)
}

func newMediaStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize media state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Total", strconv.Itoa(stats.Total)},
					{"Encoding", strconv.Itoa(stats.Encoding)},
					{"Complete", strconv.Itoa(stats.Complete)},
					{"Outputs", strconv.Itoa(stats.Outputs)},
				}
				types := make([]string, 0, len(stats.ByType))
				for fileType := range stats.ByType {
					types = append(types, string(fileType))
				}
				sort.Strings(types)
				for _, fileType := range types {
					rows = append(rows, []string{media.FileType(fileType).Label(), strconv.Itoa(stats.ByType[media.FileType(fileType)])})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Media", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}
