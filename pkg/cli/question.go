package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smith3v/mathquiz/pkg/focus"
	"github.com/smith3v/mathquiz/pkg/questions"
	"github.com/spf13/cobra"
)

func focusAreaUsage(extra string) string {
	return "focus area (" + strings.Join(focus.Names(), ", ") + ")" + extra
}

func newQuestionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "question",
		Short: "Manage the question bank",
	}
	cmd.AddCommand(
		newQuestionAddCmd(a),
		newQuestionListCmd(a),
		newQuestionImportCmd(a),
		newQuestionExportCmd(a),
	)
	return cmd
}

func newQuestionAddCmd(a *app) *cobra.Command {
	var focusArea, question, answer, reference string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add one question",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(cmd *cobra.Command, args []string) error {
			var ref *string
			if cmd.Flags().Changed("reference") {
				ref = &reference
			}
			id, err := questions.NewRepository(a.db).Add(focusArea, question, answer, ref)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added question %d\n", id)
			return nil
		}),
	}
	cmd.Flags().StringVar(&focusArea, "focus-area", "", focusAreaUsage(", Other when blank or unknown"))
	cmd.Flags().StringVar(&question, "question", "", "question text")
	cmd.Flags().StringVar(&answer, "answer", "", "answer text")
	cmd.Flags().StringVar(&reference, "reference", "", "optional source reference")
	return cmd
}

func newQuestionListCmd(a *app) *cobra.Command {
	var focusArea string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print a random sample of questions as JSON",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(cmd *cobra.Command, args []string) error {
			qs, err := questions.NewRepository(a.db).List(focusArea, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), qs)
		}),
	}
	cmd.Flags().StringVar(&focusArea, "focus-area", focus.Any, focusAreaUsage(" or Any for all"))
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of questions")
	return cmd
}

func newQuestionImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import questions from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: a.withDB(func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			inputs, skipped, err := questions.ParseCSV(data)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			imported, err := questions.NewRepository(a.db).Import(inputs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d questions, skipped %d rows\n", imported, skipped)
			return nil
		}),
	}
}

func newQuestionExportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every question as CSV",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(cmd *cobra.Command, args []string) error {
			all, err := questions.NewRepository(a.db).All()
			if err != nil {
				return err
			}
			data, err := questions.ExportCSV(all)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if info, err := os.Stat(output); err == nil && info.IsDir() {
				output = filepath.Join(output, questions.ExportFilename(time.Now()))
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d questions to %s\n", len(all), output)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file or directory, stdout when empty")
	return cmd
}
