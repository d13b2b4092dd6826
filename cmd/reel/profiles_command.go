package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reel/internal/store"
)

func newProfilesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List encoding profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				profiles, err := st.ListProfiles(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, profiles)
				}
				rows := make([][]string, 0, len(profiles))
				for _, p := range profiles {
					rows = append(rows, []string{
						strconv.FormatInt(p.ID, 10),
						p.Name,
						p.Container,
						p.MIMEType,
						p.Encoder.Name,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Container", "MIME type", "Encoder"},
					rows,
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
