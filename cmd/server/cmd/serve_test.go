package cmd

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/eventreg/server/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommand_Help(t *testing.T) {
	cmd := newServeCommand(&globalOptions{})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	for _, expected := range []string{"Start the HTTP server", "--host", "--port", "--skip-migrate"} {
		assert.Contains(t, buf.String(), expected)
	}
}

func TestApplyServeFlags(t *testing.T) {
	cfg := config.Default()

	applyServeFlags(&cfg, &serveOptions{})
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)

	applyServeFlags(&cfg, &serveOptions{host: "127.0.0.1", port: 9090})
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestServeCommand_InvalidPort(t *testing.T) {
	cmd := newServeCommand(&globalOptions{})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--port", "not-a-number"})

	assert.Error(t, cmd.Execute())
}

func TestServe_GracefulShutdown(t *testing.T) {
	server := &http.Server{
		Addr:    "127.0.0.1:0",
		Handler: http.NotFoundHandler(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, server, zerolog.Nop()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServe_ListenError(t *testing.T) {
	server := &http.Server{Addr: "256.0.0.1:99999", Handler: http.NotFoundHandler()}

	err := serve(context.Background(), server, zerolog.Nop())
	assert.Error(t, err)
}

func TestDBTraceOptions_ParametersOnlyInDevelopment(t *testing.T) {
	tests := []struct {
		env        string
		tracing    bool
		wantParams bool
	}{
		{"development", true, true},
		{"Development", true, true},
		{"test", true, false},
		{"staging", true, false},
		{"production", true, false},
		{"development", false, false},
	}

	for _, tt := range tests {
		cfg := config.Default()
		cfg.Environment = tt.env
		cfg.Tracing.Enabled = tt.tracing

		opts := dbTraceOptions(cfg)
		assert.Equal(t, tt.tracing, opts.Enabled, tt.env)
		assert.Equal(t, tt.wantParams, opts.IncludeParameters, tt.env)
	}
}
