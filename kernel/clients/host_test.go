package clients

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edgeops/converge/kernel/model"
)

func TestNewHost_Local(t *testing.T) {
	host, err := NewHost(model.HostConfig{})
	if err != nil {
		t.Fatalf("NewHost failed: %v", err)
	}
	if _, ok := host.(*LocalHost); !ok {
		t.Fatalf("expected LocalHost for empty address, got %T", host)
	}
	_ = host.Close()
}

func TestLocalHost_FileOperations(t *testing.T) {
	host := &LocalHost{}
	path := filepath.Join(t.TempDir(), "api.env")

	if err := host.WriteFile(path, []byte("PORT=8080\n"), 0640); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := host.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "PORT=8080\n" {
		t.Errorf("unexpected content '%s'", data)
	}

	info, err := host.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0640 {
		t.Errorf("expected mode 0640, got %04o", info.Mode().Perm())
	}

	// Rewriting with a different mode re-chmods the existing file.
	if err := host.WriteFile(path, []byte("PORT=9090\n"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	info, _ = host.Stat(path)
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600 after rewrite, got %04o", info.Mode().Perm())
	}

	if err := host.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := host.ReadFile(path); !os.IsNotExist(err) {
		t.Errorf("expected not-exist after remove, got %v", err)
	}
}

func TestLocalHost_Exec(t *testing.T) {
	host := &LocalHost{}

	out, err := host.Exec(context.Background(), "echo converged")
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if strings.TrimSpace(out) != "converged" {
		t.Errorf("unexpected output '%s'", out)
	}

	if _, err := host.Exec(context.Background(), "exit 3"); err == nil {
		t.Fatal("expected error for failing command")
	}
}
