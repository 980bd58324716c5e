package sqlite

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/pointpainting/internal/monitoring"
)

// captureLogs redirects the monitoring logger for the duration of the test.
func captureLogs(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.Logf = prev })
	return &lines
}

func TestMigrateLogger_UsesMonitoring(t *testing.T) {
	lines := captureLogs(t)

	migrateLogger{}.Printf("applied %d/u %s", 2, "frame_stats")

	if len(*lines) != 1 || (*lines)[0] != "[migrate] applied 2/u frame_stats" {
		t.Errorf("captured %q, want one [migrate] line", *lines)
	}
}

func TestMigrateLogger_Silenced(t *testing.T) {
	lines := captureLogs(t)
	monitoring.SetLogger(nil)

	migrateLogger{}.Printf("applied %d", 1)

	if len(*lines) != 0 {
		t.Errorf("muted logger still captured %q", *lines)
	}
}

func TestOpen_LogsSchemaVersionWhenVerbose(t *testing.T) {
	lines := captureLogs(t)
	monitoring.SetVerbose(true)
	t.Cleanup(func() { monitoring.SetVerbose(false) })

	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	found := false
	for _, l := range *lines {
		if strings.Contains(l, "schema version 2") {
			found = true
		}
	}
	if !found {
		t.Errorf("no schema version line in %q", *lines)
	}
}
