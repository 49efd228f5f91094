package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roffe/dronelink"
	_ "github.com/roffe/dronelink/driver/virtual"
	"github.com/roffe/dronelink/internal/config"
	"github.com/roffe/dronelink/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func TestMain(m *testing.M) {
	logging.ConfigureTests()
	os.Exit(m.Run())
}

func run(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := Execute(ctx)
	return out.String(), err
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(args...)
	if err != nil {
		t.Fatalf("droneview %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestDrivers(t *testing.T) {
	out := execute(t, "drivers")
	if !strings.Contains(out, "virtual") {
		t.Fatalf("drivers output %q missing virtual", out)
	}
}

func TestList(t *testing.T) {
	out := execute(t, "list", "--driver", "virtual")
	if strings.TrimSpace(out) != "virtual0" {
		t.Fatalf("list output = %q, want virtual0", out)
	}
}

func TestDump(t *testing.T) {
	out := execute(t, "dump", "--driver", "virtual", "--port", "*", "--fps", "200", "-n", "3")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("dump printed %d lines, want 3:\n%s", len(lines), out)
	}
	for _, l := range lines {
		if !strings.Contains(l, " || 69 ") {
			t.Errorf("line %q does not hold a packet starting with 'i'", l)
		}
	}
}

func TestRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.txt")
	execute(t, "record", path, "--driver", "virtual", "--port", "virtual0", "--fps", "200", "-n", "2")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 {
		t.Fatalf("capture has %d lines, want 2:\n%s", len(lines), b)
	}
	for _, l := range lines {
		fields := strings.Fields(l)
		if len(fields) != 2 || !strings.HasPrefix(fields[1], "69") || len(fields[1]) != 20 {
			t.Errorf("capture line %q, want timestamp and 10 hex bytes", l)
		}
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "droneview.toml")
	doc := "driver = \"virtual\"\nport = \"virtual0\"\n\n[driver_options]\ninterval = \"5ms\"\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	out := execute(t, "list", "--config", path)
	if !strings.Contains(out, "virtual0") {
		t.Fatalf("list output = %q", out)
	}
}

func TestRecordConnectFailureLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.txt")
	if _, err := run("record", path, "--driver", "virtual", "--port", "missing0", "-n", "1"); err == nil {
		t.Fatal("record on a missing port returned nil error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("capture file exists after failed connect: %v", err)
	}
}

func TestSessionLogsToGivenLogger(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	var global, session bytes.Buffer
	log.Logger = zerolog.New(&global)
	sessionLog := zerolog.New(&session)

	cfg := config.Default()
	cfg.Driver = "virtual"
	cfg.Port = "virtual0"
	cfg.Session.Mode.ReadTimeout = 5 * time.Millisecond

	var events []dronelink.Event
	c := &cobra.Command{
		Use: "test",
		RunE: func(c *cobra.Command, args []string) error {
			s, err := openSession(c, cfg, &sessionLog)
			if err != nil {
				return err
			}
			defer s.Close()
			// stop, then start again
			if err := toggleReading(s); err != nil {
				return err
			}
			if err := toggleReading(s); err != nil {
				return err
			}
			events = drainEvents(s)
			return nil
		},
	}
	c.SetArgs([]string{})
	if err := c.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if global.Len() != 0 {
		t.Errorf("session wrote to the global logger: %q", global.String())
	}
	if !strings.Contains(session.String(), "stopped reading") {
		t.Errorf("session logger missing lifecycle lines: %q", session.String())
	}
	var infos int
	for _, e := range events {
		if e.Type == dronelink.EventTypeInfo {
			infos++
		}
	}
	// connect, start, stop, start
	if infos != 4 {
		t.Errorf("got %d info events, want 4: %v", infos, events)
	}
}
