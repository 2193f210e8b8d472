package vmm

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitForSocketTimesOutWhenNeverListening(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "never.sock")

	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
	defer cancel()

	err := WaitForSocket(ctx, sock)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	require.Equal(t, ErrSpawn, apiErr.Kind)
}

func TestWaitForSocketSucceedsOncePresent(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "ready.sock")

	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	err = WaitForSocket(context.Background(), sock)
	require.NoError(t, err)
}

func TestClientDoRoundTripsJSON(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "ch.sock")
	os.Remove(sock)

	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	defer ln.Close()

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/vm.create", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})}
	go srv.Serve(ln)
	defer srv.Close()

	c := New(sock)
	err = c.Do(context.Background(), http.MethodPut, "/vm.create", map[string]any{"cpus": 1}, nil)
	require.NoError(t, err)
}

func TestClientDoSurfacesNon2xxAsProcessError(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "ch.sock")
	os.Remove(sock)

	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	defer ln.Close()

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})}
	go srv.Serve(ln)
	defer srv.Close()

	c := New(sock)
	err = c.Do(context.Background(), http.MethodGet, "/vm.info", nil, nil)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	require.Equal(t, ErrProcess, apiErr.Kind)
	require.Equal(t, 500, apiErr.StatusCode)
}
