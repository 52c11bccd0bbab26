package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"genstudio/internal/domain"
	"genstudio/internal/studio"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		prompt string
		aspect string
		size   string
		count  int
		refs   []string
		detach bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Submit one batch of generations and wait for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Normalize would turn 0 into 1
			if count < 1 || count > domain.MaxBatchSize {
				return fmt.Errorf("%w: --count must be between 1 and %d", domain.ErrInvalidRequest, domain.MaxBatchSize)
			}
			return ctx.withStudio(func(runCtx context.Context, s *studio.Studio) error {
				references, err := s.PrepareReferences(refs)
				if err != nil {
					return err
				}
				req := domain.GenerationRequest{
					Prompt:          prompt,
					AspectRatio:     domain.AspectRatio(aspect),
					ImageSize:       domain.ImageSize(size),
					ReferenceAssets: references,
					BatchSize:       count,
				}
				batchID, err := s.Run(runCtx, req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued batch %s\n", batchID)
				if detach {
					fmt.Fprint(out, renderBoard(s.Board().Snapshot()))
					return nil
				}
				waitOrCancel(runCtx, s)
				fmt.Fprint(out, renderBoard(s.Board().Snapshot()))
				return runCtx.Err()
			})
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt text")
	cmd.Flags().StringVar(&aspect, "aspect", string(domain.DefaultAspectRatio), "Aspect ratio (1:1, 16:9, ...)")
	cmd.Flags().StringVar(&size, "size", string(domain.DefaultImageSize), "Image size (1K, 2K, 4K)")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of images in the batch (1-8)")
	cmd.Flags().StringArrayVar(&refs, "ref", nil, "Reference image path or URL (repeatable, up to 6)")
	cmd.Flags().BoolVar(&detach, "detach", false, "Return after queueing; the batch stays pending until `studio recover` runs it")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func newRecoverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Resume jobs and batches left by an earlier run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(func(runCtx context.Context, s *studio.Studio) error {
				summary, err := s.Recover(runCtx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if summary.Jobs == 0 && summary.Batches == 0 {
					fmt.Fprintln(out, "Nothing to recover.")
					return nil
				}
				fmt.Fprintf(out, "Recovering %d job(s) and %d batch(es)\n", summary.Jobs, summary.Batches)
				waitOrCancel(runCtx, s)
				fmt.Fprint(out, renderBoard(s.Board().Snapshot()))
				return runCtx.Err()
			})
		},
	}
}

// waitOrCancel returns when the session drains or ctx is cancelled. On
// cancellation the running batch is stopped so in-flight jobs stay recoverable.
func waitOrCancel(ctx context.Context, s *studio.Studio) {
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.Stop()
		<-done
	}
}
