package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want zerolog.Level
		ok   bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, true},
		{" WARN ", zerolog.WarnLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseLevel(tt.raw)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("parseLevel(%q) = %v, %v want %v, %v", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogNoColor, "true")
	t.Setenv(EnvLogTimestamp, "nope")

	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel {
		t.Errorf("Level = %v, want error", cfg.Level)
	}
	if !cfg.NoColor {
		t.Error("NoColor = false, want true")
	}
	if !cfg.Timestamp {
		t.Error("unparsable timestamp override must keep the default")
	}
}

func TestNewWritesConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: zerolog.InfoLevel, NoColor: true, Out: &buf})
	l.Debug().Msg("hidden")
	l.Info().Str("port", "COM3").Msg("successfully opened port")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level: %q", out)
	}
	if !strings.Contains(out, "successfully opened port") || !strings.Contains(out, "port=COM3") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestSetDebugEnablesDebugLines(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	cfg := defaultConfig(ProfileRuntime)
	cfg.NoColor = true
	cfg.Out = &buf
	log.Logger = New(cfg)
	zerolog.SetGlobalLevel(cfg.Level)

	log.Debug().Msg("before debug")
	SetDebug(true)
	log.Debug().Msg("after debug")

	derived := log.Logger.With().Str("driver", "virtual").Logger()
	derived.Debug().Msg("derived debug")

	out := buf.String()
	if strings.Contains(out, "before debug") {
		t.Errorf("debug line written at info level: %q", out)
	}
	if !strings.Contains(out, "after debug") || !strings.Contains(out, "derived debug") {
		t.Errorf("debug lines missing after SetDebug(true): %q", out)
	}
}

func TestSetDebugFalseKeepsLevel(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	log.Logger = New(Config{Level: zerolog.InfoLevel, NoColor: true, Out: &buf})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	SetDebug(false)
	log.Debug().Msg("still hidden")
	if buf.Len() != 0 {
		t.Errorf("debug line written without --debug: %q", buf.String())
	}
}
