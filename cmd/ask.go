package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
)

var (
	askCompanies []string
	askYear      int
	askDocType   string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		q := model.Question{Text: strings.Join(args, " ")}
		if len(askCompanies) > 0 || askYear > 0 || askDocType != "" {
			q.Context = &model.QuestionContext{
				Companies: askCompanies,
				Year:      askYear,
				DocType:   askDocType,
			}
		}

		ans, err := env.Pipeline.Ask(cmd.Context(), q)
		if err != nil {
			return err
		}

		fmt.Println(ans.Text)
		if len(ans.Sources) > 0 {
			fmt.Println("\n출처:")
			for _, s := range ans.Sources {
				name := s.Name
				if name == "" {
					name = s.Title
				}
				fmt.Printf("  - [%s] %s (%s)\n", s.Type, name, s.URL)
			}
		}
		if ans.Metadata != nil {
			fmt.Printf("\nmodel=%s tokens=%d cost=$%.4f time=%.1fs\n",
				ans.Metadata.ModelUsed,
				ans.Metadata.TokenUsage.Total(),
				ans.Metadata.EstimatedCost,
				ans.ProcessingSeconds,
			)
		}

		return nil
	},
}

func init() {
	askCmd.Flags().StringSliceVar(&askCompanies, "company", nil, "restrict to specific companies")
	askCmd.Flags().IntVar(&askYear, "year", 0, "restrict to a specific year")
	askCmd.Flags().StringVar(&askDocType, "doc-type", "", "restrict to a document type")
	rootCmd.AddCommand(askCmd)
}
