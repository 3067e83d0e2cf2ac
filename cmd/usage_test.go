package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
)

func TestUsageCommand(t *testing.T) {
	env := newTestEnv()
	env.Ledger.Record("simple", "gemini-2.0-flash", model.TokenUsage{InputTokens: 1000, OutputTokens: 100})
	srv := httptest.NewServer(newAPIRouter(env))
	defer srv.Close()

	usageAddr = srv.URL
	defer func() { usageAddr = "" }()

	usageCmd.SetContext(context.Background())
	require.NoError(t, usageCmd.RunE(usageCmd, nil))
}

func TestUsageCommand_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	usageAddr = srv.URL
	defer func() { usageAddr = "" }()

	usageCmd.SetContext(context.Background())
	err := usageCmd.RunE(usageCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestUsageCommand_ServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NewServeMux())
	addr := srv.URL
	srv.Close()

	usageAddr = addr
	defer func() { usageAddr = "" }()

	usageCmd.SetContext(context.Background())
	assert.Error(t, usageCmd.RunE(usageCmd, nil))
}
