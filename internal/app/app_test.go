package app

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "divvy.ini")
	content := "[default]\ncreditLimit = 5\nresetSeconds = 60\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestApplicationServesHitOverTCP(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ConfigPath = writeTempConfig(t)
	cfg.ListenAddr = "127.0.0.1:0"

	application, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		application.Shutdown(shutdownCtx)
	}()

	conn, err := net.Dial("tcp", application.Server.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("HIT method=GET\n"))
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if line != "OK true 4 60\n" {
		t.Fatalf("got %q", line)
	}
}

func TestNewRejectsMissingConfigFile(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ConfigPath = filepath.Join(t.TempDir(), "does-not-exist.ini")
	if _, err := New(cfg); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ListenAddr = ""
	if _, err := New(cfg); err == nil {
		t.Fatal("expected a validation error")
	}
}
