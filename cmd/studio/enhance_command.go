package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"genstudio/internal/studio"
)

func newEnhanceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enhance <prompt>",
		Short: "Rewrite a prompt with the configured enhancer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(runCtx context.Context, s *studio.Studio) error {
				enhanced, err := s.Client().EnhancePrompt(runCtx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), enhanced)
				return nil
			})
		},
	}
}
