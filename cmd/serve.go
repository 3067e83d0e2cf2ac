package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
	"github.com/Mnemosyn1154/WVP-QNA/internal/router"
	"github.com/Mnemosyn1154/WVP-QNA/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Q&A HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newAPIRouter(env),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newAPIRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/chat", handleChat(env))
	r.Get("/api/chat/history", handleHistory(env))
	r.Delete("/api/chat/cache", handleClearCache(env))
	r.Get("/api/usage", handleUsage(env))

	return r
}

type chatRequest struct {
	Question string                 `json:"question"`
	Context  *model.QuestionContext `json:"context,omitempty"`
}

func handleChat(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Question == "" {
			writeError(w, http.StatusBadRequest, "question is required")
			return
		}

		ans, err := env.Pipeline.Ask(r.Context(), model.Question{
			Text:    req.Question,
			Context: req.Context,
		})
		if err != nil {
			zap.L().Error("chat request failed", zap.Error(err))
			status := http.StatusInternalServerError
			if eris.Is(err, router.ErrAllTiersFailed) {
				status = http.StatusServiceUnavailable
			}
			reason := model.ReasonProviderError
			if n := len(ans.Routing); n > 0 {
				reason = ans.Routing[n-1].Reason
			}
			writeJSON(w, status, map[string]any{
				"error":   "질문 처리에 실패했습니다. 잠시 후 다시 시도해주세요.",
				"reason":  reason,
				"routing": ans.Routing,
			})
			return
		}

		writeJSON(w, http.StatusOK, ans)
	}
}

func handleHistory(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		exchanges, err := env.Store.ListExchanges(r.Context(), store.ExchangeFilter{
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			zap.L().Error("history query failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "history unavailable")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"exchanges": exchanges,
			"count":     len(exchanges),
		})
	}
}

func handleClearCache(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{
			"cleared": env.Pipeline.ClearCache(),
		})
	}
}

func handleUsage(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		tiers := make(map[string]any, 2)
		for _, tier := range []string{"simple", "complex"} {
			spent := env.Ledger.Spent(tier)
			tiers[tier] = map[string]any{
				"calls":         spent.Calls,
				"tokens":        spent.Tokens,
				"cost_usd":      spent.CostUSD,
				"remaining_usd": env.Ledger.Remaining(tier),
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"tiers": tiers})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
