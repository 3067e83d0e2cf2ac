package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var usageAddr string

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show today's per-tier spend against the daily budgets",
	Long:  "Queries a running server for the in-process usage ledger. The ledger lives with the server; a fresh process has nothing to report.",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := usageAddr
		if addr == "" {
			addr = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
		}

		client := &http.Client{Timeout: 10 * time.Second}
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, addr+"/api/usage", nil)
		if err != nil {
			return eris.Wrap(err, "build usage request")
		}
		resp, err := client.Do(req)
		if err != nil {
			return eris.Wrap(err, "query usage endpoint")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return eris.Errorf("usage endpoint returned status %d", resp.StatusCode)
		}

		var body struct {
			Tiers map[string]struct {
				Calls        int     `json:"calls"`
				Tokens       int     `json:"tokens"`
				CostUSD      float64 `json:"cost_usd"`
				RemainingUSD float64 `json:"remaining_usd"`
			} `json:"tiers"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return eris.Wrap(err, "decode usage response")
		}

		names := make([]string, 0, len(body.Tiers))
		for name := range body.Tiers {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			t := body.Tiers[name]
			fmt.Printf("%s: calls=%d tokens=%d spent=$%.4f remaining=$%.4f\n",
				name, t.Calls, t.Tokens, t.CostUSD, t.RemainingUSD)
		}

		return nil
	},
}

func init() {
	usageCmd.Flags().StringVar(&usageAddr, "addr", "", "server base URL (default http://localhost:<server.port>)")
	rootCmd.AddCommand(usageCmd)
}
