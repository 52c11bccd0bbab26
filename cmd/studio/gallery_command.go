package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"genstudio/internal/domain"
	"genstudio/internal/studio"
)

func newGalleryCommand(ctx *commandContext) *cobra.Command {
	var (
		scope    string
		page     int
		pageSize int
		export   string
	)
	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "List saved images",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(runCtx context.Context, s *studio.Studio) error {
				assets, err := s.Client().ListAssets(runCtx, domain.ParseAssetScope(scope), domain.Page{Number: page, Size: pageSize})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if export != "" {
					n, err := exportGallery(runCtx, s.Client(), assets, export)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Exported %d images to %s\n", n, export)
					return nil
				}
				if len(assets) == 0 {
					fmt.Fprintln(out, "No images yet.")
					return nil
				}
				gallery := make([]domain.GeneratedAsset, 0, len(assets))
				for _, a := range assets {
					gallery = append(gallery, a.Gallery())
				}
				fmt.Fprintln(out, renderGallery(gallery))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", string(domain.AssetScopeMine), "mine or all")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", domain.DefaultPageSize, "Items per page")
	cmd.Flags().StringVar(&export, "export", "", "Write the listed page to a zip file instead of printing it")
	return cmd
}
