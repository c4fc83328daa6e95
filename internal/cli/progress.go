package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Progress record commands",
	}

	cmd.AddCommand(newProgressInitCmd())
	cmd.AddCommand(newProgressShowCmd())
	cmd.AddCommand(newProgressCompleteCmd())

	return cmd
}

func newProgressInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create your progress record",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result ProgressRecord

			if err := client.Post("/api/v1/progress", map[string]string{}, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newProgressShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [owner]",
		Short: "Show a progress record (defaults to your own)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/progress/me"
			if len(args) == 1 {
				path = "/api/v1/progress/" + args[0]
			}

			var result ProgressRecord
			if err := client.Get(path, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newProgressCompleteCmd() *cobra.Command {
	var (
		lesson string
		points uint32
		reward uint64
	)

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Record a completed lesson on your progress record",
		Long: `Record a completed lesson. Completing a lesson that is already recorded
is accepted and reported as a no-op; nothing is awarded twice.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if lesson == "" {
				return fmt.Errorf("--lesson is required")
			}

			owner, err := currentIdentity()
			if err != nil {
				return err
			}

			req := map[string]any{
				"lesson_id": lesson,
				"points":    points,
			}
			if reward > 0 {
				req["reward"] = reward
			}

			var result CompletionResult
			if err := client.Post("/api/v1/progress/"+owner+"/lessons", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&lesson, "lesson", "", "Lesson ID (required)")
	cmd.Flags().Uint32Var(&points, "points", 0, "Points awarded for a first completion")
	cmd.Flags().Uint64Var(&reward, "reward", 0, "Reward allocated for a first completion")
	_ = cmd.MarkFlagRequired("lesson")

	return cmd
}
