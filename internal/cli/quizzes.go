package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"quiz-host/internal/domain"

	"github.com/spf13/cobra"
)

func newQuizzesCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "quizzes",
		Aliases: []string{"quiz"},
		Short:   "Manage the quiz library",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored quizzes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary(cmd.Context(), e.cfg, e.log)
			if err != nil {
				return err
			}
			defer lib.Close()
			quizzes, err := lib.quizzes.List(cmd.Context())
			if err != nil {
				return err
			}
			return printQuizzes(cmd.OutOrStdout(), quizzes)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.json>",
		Short: "Import one quiz or an array of quizzes, replacing quizzes with the same id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			incoming, err := decodeQuizzes(data)
			if err != nil {
				return err
			}
			lib, err := openLibrary(cmd.Context(), e.cfg, e.log)
			if err != nil {
				return err
			}
			defer lib.Close()
			imported, err := lib.quizzes.Import(cmd.Context(), incoming...)
			if err != nil {
				return err
			}
			for _, q := range imported {
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%s)\n", q.ID, q.Title)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <quiz-id>",
		Short: "Delete a quiz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary(cmd.Context(), e.cfg, e.log)
			if err != nil {
				return err
			}
			defer lib.Close()
			if err := lib.quizzes.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	})
	return cmd
}

// decodeQuizzes accepts a single quiz object or an array of them.
func decodeQuizzes(data []byte) ([]domain.Quiz, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var quizzes []domain.Quiz
		if err := json.Unmarshal(trimmed, &quizzes); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidQuiz, err)
		}
		return quizzes, nil
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(trimmed, &quiz); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidQuiz, err)
	}
	return []domain.Quiz{quiz}, nil
}

func printQuizzes(w io.Writer, quizzes []domain.Quiz) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tQUESTIONS")
	for _, q := range quizzes {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", q.ID, q.Title, len(q.Questions))
	}
	return tw.Flush()
}
