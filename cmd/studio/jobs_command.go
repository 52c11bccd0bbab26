package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"genstudio/internal/studio"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "Show job ids awaiting recovery",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(runCtx context.Context, s *studio.Studio) error {
				ids, err := s.Jobs().List(runCtx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					fmt.Fprintln(out, "No active jobs.")
					return nil
				}
				rows := make([][]string, 0, len(ids))
				for i, id := range ids {
					rows = append(rows, []string{strconv.Itoa(i + 1), id})
				}
				fmt.Fprintln(out, renderTable([]string{"#", "Job"}, rows, []columnAlignment{alignRight}))
				return nil
			})
		},
	}
}
