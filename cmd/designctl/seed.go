package main

import (
	"context"
	"fmt"

	"github.com/jo-hoe/designcase/internal/core"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create or refresh the default case study templates",
	Long: `Render the preview image of every default template, store it under
templates/ and upsert the template rows. Safe to run repeatedly.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	return withCoreService(cmd, func(ctx context.Context, service *core.CoreService) error {
		templates, err := service.SeedTemplates(ctx)
		if err != nil {
			return err
		}
		for _, t := range templates {
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", t.Slug, t.Thumbnail)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d templates\n", len(templates))
		return nil
	})
}
