// ABOUTME: Tests for the Gateway lifecycle over a real listener.
// ABOUTME: Covers startup, routing, and graceful shutdown on context cancel.

package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freeAddr finds an available loopback address for the test server.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestGateway_RunAndShutdown(t *testing.T) {
	tg := newTestGateway(t)
	addr := freeAddr(t)
	tg.gw.config.Server.HTTPAddr = addr
	tg.gw.httpServer.Addr = addr

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- tg.gw.Run(ctx) }()

	baseURL := fmt.Sprintf("http://%s", addr)
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond, "health endpoint never came up")

	// All routes are registered.
	for _, path := range []string{"/status", "/qrcode"} {
		resp, err := http.Get(baseURL + path)
		require.NoError(t, err, "GET %s", path)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, "GET %s", path)
	}

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err, "graceful shutdown must not report an error")
	case <-time.After(10 * time.Second):
		t.Fatal("gateway did not shut down")
	}
}

func TestGateway_RunFailsOnBusyPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	tg := newTestGateway(t)
	tg.gw.config.Server.HTTPAddr = ln.Addr().String()

	err = tg.gw.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on HTTP address")
}
