package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	platformgrpc "github.com/louisbranch/tablekeep/internal/platform/grpc"
)

// TestServeStopsOnContext verifies the server serves and stops on cancel.
func TestServeStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := NewServer(Config{
		HTTPAddr:      "127.0.0.1:0",
		GRPCAddr:      "127.0.0.1:0",
		JournalDBPath: filepath.Join(t.TempDir(), "journal.db"),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer srv.Close()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(ctx)
	}()

	addr := srv.grpcListener.Addr().String()
	conn, err := platformgrpc.DialWithHealth(ctx, addr, 2*time.Second, t.Logf, platformgrpc.DefaultClientDialOptions()...)
	if err != nil {
		t.Fatalf("dial health listener: %v", err)
	}
	defer func() { _ = conn.Close() }()

	checkCtx, checkCancel := context.WithTimeout(ctx, 2*time.Second)
	defer checkCancel()
	if err := platformgrpc.WaitForHealth(checkCtx, conn, "tablekeep.continuity", t.Logf); err != nil {
		t.Fatalf("health check: %v", err)
	}

	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestNewServerRequiresHTTPAddr(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Fatal("expected error for missing http address")
	}
}

func TestNewServerRejectsMissingBotScript(t *testing.T) {
	_, err := NewServer(Config{
		HTTPAddr:  "127.0.0.1:0",
		BotScript: filepath.Join(t.TempDir(), "missing.lua"),
		Engine:    &fakeEngine{},
	})
	if err == nil {
		t.Fatal("expected error for missing bot script")
	}
}
