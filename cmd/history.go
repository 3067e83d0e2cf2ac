package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mnemosyn1154/WVP-QNA/internal/store"
)

var (
	historyLimit  int
	historyOffset int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent question/answer exchanges",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		exchanges, err := st.ListExchanges(cmd.Context(), store.ExchangeFilter{
			Limit:  historyLimit,
			Offset: historyOffset,
		})
		if err != nil {
			return err
		}

		if len(exchanges) == 0 {
			fmt.Println("no exchanges recorded")
			return nil
		}

		for _, ex := range exchanges {
			fmt.Printf("[%s] tier=%s reason=%s\n", ex.CreatedAt.Local().Format("2006-01-02 15:04"), ex.Tier, ex.Reason)
			fmt.Printf("  Q: %s\n", ex.Question)
			fmt.Printf("  A: %s\n\n", truncate(ex.Answer, 200))
		}

		return nil
	},
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum exchanges to list")
	historyCmd.Flags().IntVar(&historyOffset, "offset", 0, "exchanges to skip")
	rootCmd.AddCommand(historyCmd)
}
