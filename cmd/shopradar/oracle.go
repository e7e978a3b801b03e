package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shopradar/shopradar/internal/cli"
	"github.com/shopradar/shopradar/internal/config"
	"github.com/shopradar/shopradar/internal/oracle"
)

func oracleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oracle",
		Short: "Interact with the scoring oracle directly",
	}

	cmd.AddCommand(oracleTestCmd())

	return cmd
}

func oracleTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <review text>...",
		Short: "Score review texts against the configured model",
		Long: `Send one or more review texts to the rating model and print the
prediction. Useful for checking connectivity and sanity of the model
endpoint before running a full search.

Example:
  shopradar oracle test "Great selection, staff really know their stock."`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scorer, err := oracle.New(config.LoadOracleConfig())
			if err != nil {
				return err
			}
			defer scorer.Close()

			prediction, err := scorer.Score(cmd.Context(), args)
			if err != nil {
				return fmt.Errorf("scoring failed: %w", err)
			}

			content := fmt.Sprintf("%s %.2f\n\n%s",
				cli.Stars(prediction.Rating), prediction.Rating, prediction.Explanation)
			fmt.Fprintln(os.Stdout, cli.RenderBox("Prediction", content))
			return nil
		},
	}
}
