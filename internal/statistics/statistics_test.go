package statistics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestRegistryWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "variables.csv")
	registry := NewRegistry(zap.NewNop(), path, true)

	value := 1.5
	registry.Add(Variable{Name: "profit", Description: "running profit", Get: func() float64 { return value }})
	registry.Add(Variable{Name: "mood", Description: "advisor mood", Get: func() float64 { return -1 }})

	registry.Log()
	value = 2.5
	registry.Log()
	registry.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "profit\tmood" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if lines[1] != "1.5\t-1" || lines[2] != "2.5\t-1" {
		t.Fatalf("unexpected rows: %q, %q", lines[1], lines[2])
	}

	if _, err := os.Stat(path + ".info"); err != nil {
		t.Fatalf("expected description file: %v", err)
	}
}

func TestRegistryRenamesDuplicates(t *testing.T) {
	registry := NewRegistry(zap.NewNop(), filepath.Join(t.TempDir(), "variables.csv"), true)

	registry.Add(Variable{Name: "rsi", Get: func() float64 { return 0 }})
	registry.Add(Variable{Name: "rsi", Get: func() float64 { return 0 }})
	registry.Add(Variable{Name: "rsi", Get: func() float64 { return 0 }})

	if registry.variables[1].Name != "rsi_2" || registry.variables[2].Name != "rsi_3" {
		t.Fatalf("unexpected names: %q, %q", registry.variables[1].Name, registry.variables[2].Name)
	}
}

func TestDisabledRegistryWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "variables.csv")
	registry := NewRegistry(zap.NewNop(), path, false)
	registry.Add(Variable{Name: "x", Get: func() float64 { return 0 }})

	registry.Log()
	registry.Close()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no output file, err=%v", err)
	}
}
