package sysutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetLogLevel(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	want := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" DEBUG ": zerolog.DebugLevel,
		"":        zerolog.InfoLevel,
		"info":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"Warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"fatal":   zerolog.FatalLevel,
		"panic":   zerolog.PanicLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, lvl := range want {
		SetLogLevel(in)
		if got := zerolog.GlobalLevel(); got != lvl {
			t.Fatalf("SetLogLevel(%q) -> %v; want %v", in, got, lvl)
		}
	}
}

func TestIsTruthy(t *testing.T) {
	for v, want := range map[string]bool{
		"1": true, "true": true, " YES ": true, "y": true, "On": true,
		"": false, "0": false, "false": false, "off": false, "daily": false,
	} {
		if IsTruthy(v) != want {
			t.Fatalf("IsTruthy(%q) != %v", v, want)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{" ", "\t"}, ""},
		{[]string{"", " v1.2.0 ", "dev"}, " v1.2.0 "},
		{[]string{"dev", "v1"}, "dev"},
	}
	for _, tc := range cases {
		if got := FirstNonEmpty(tc.in...); got != tc.want {
			t.Fatalf("FirstNonEmpty(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestSetupLogger_JSONAndPretty(t *testing.T) {
	origLvl := zerolog.GlobalLevel()
	origLog := log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(origLvl)
		log.Logger = origLog
	})

	var buf bytes.Buffer
	SetupLogger(&buf, "warn", false)
	log.Info().Msg("hidden")
	log.Warn().Str("chat", "-1001").Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info logged at warn level: %s", out)
	}
	if !strings.Contains(out, `"message":"shown"`) || !strings.Contains(out, `"time":`) {
		t.Fatalf("expected JSON line with timestamp, got %s", out)
	}

	buf.Reset()
	SetupLogger(&buf, "debug", true)
	log.Debug().Msg("pretty line")
	out = buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") || !strings.Contains(out, "pretty line") {
		t.Fatalf("expected console output, got %q", out)
	}
}
