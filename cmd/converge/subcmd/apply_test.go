package subcmd

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestApplyCommand_DryRun(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "api.env")
	yaml := fmt.Sprintf(`
environment: test-apply
resources:
  - type: env-file
    name: api
    spec:
      path: %s
      vars:
        PORT: "8080"
`, envPath)
	path := writeTempDocument(t, yaml)

	cmd := NewApplyCommand()
	cmd.SetArgs([]string{path, "--dry-run"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("apply --dry-run failed: %v", err)
	}
	// Dry-run plans only; the file must not have been written.
	if _, err := os.Stat(envPath); !os.IsNotExist(err) {
		t.Error("expected dry-run to leave the env file untouched")
	}
}

func TestApplyCommand_MissingDocument(t *testing.T) {
	cmd := NewApplyCommand()
	cmd.SetArgs([]string{"/nonexistent/document.yml", "--dry-run"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for nonexistent document")
	}
}

func TestApplyCommand_InvalidDocument(t *testing.T) {
	yaml := `
environment: test-apply
resources:
  - type: env-file
    name: api
    spec:
      path: /etc/api/env
      vars:
        PORT: "8080"
  - type: env-file
    name: api
    spec:
      path: /etc/api/env2
      vars:
        PORT: "9090"
`
	path := writeTempDocument(t, yaml)

	cmd := NewApplyCommand()
	cmd.SetArgs([]string{path, "--dry-run"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for duplicate resource id")
	}
}

func TestApplyCommand_UnknownResourceType(t *testing.T) {
	yaml := `
environment: test-apply
resources:
  - type: load-balancer
    name: lb
    spec: {}
`
	path := writeTempDocument(t, yaml)

	cmd := NewApplyCommand()
	cmd.SetArgs([]string{path, "--dry-run"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown resource type")
	}
}

func TestPlanCommand(t *testing.T) {
	yaml := `
environment: test-plan
resources:
  - type: env-file
    name: api
    spec:
      path: /nonexistent/converge-test/api.env
      vars:
        PORT: "8080"
`
	path := writeTempDocument(t, yaml)

	cmd := NewPlanCommand()
	cmd.SetArgs([]string{path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("plan failed: %v", err)
	}
}

func writeTempDocument(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "document.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp document: %v", err)
	}
	return path
}
