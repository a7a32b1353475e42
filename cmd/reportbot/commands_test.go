package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-report-bot/internal/config"
)

func TestWantsDaily(t *testing.T) {
	cases := []struct {
		flag bool
		env  string
		want bool
	}{
		{false, "", false},
		{false, "0", false},
		{false, "1", true},
		{false, "yes", true},
		{true, "", true},
		{true, "false", true},
	}
	for _, tc := range cases {
		if got := wantsDaily(tc.flag, tc.env); got != tc.want {
			t.Fatalf("wantsDaily(%v, %q) = %v; want %v", tc.flag, tc.env, got, tc.want)
		}
	}
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"collect"},
		{"report"},
		{"daily"},
		{"serve"},
		{"roster", "import"},
	} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd == rootCmd {
			t.Fatalf("command %v not registered: %v", path, err)
		}
	}
	if rootCmd.Flags().Lookup("daily") == nil {
		t.Fatalf("--daily flag missing")
	}
	if err := rosterImportCmd.Args(rosterImportCmd, nil); err == nil {
		t.Fatalf("roster import must require a file argument")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	prevEnv := envFile
	t.Cleanup(func() { envFile = prevEnv })

	t.Run("missing token", func(t *testing.T) {
		envFile = filepath.Join(dir, "absent.env")
		t.Setenv("TELEGRAM_BOT_TOKEN", "")
		t.Setenv("TELEGRAM_CHAT_ID", "")

		err := loadConfig(&cobra.Command{}, nil)
		if !errors.Is(err, errConfig) || !errors.Is(err, config.ErrMissing) {
			t.Fatalf("err = %v; want errConfig wrapping ErrMissing", err)
		}
	})

	t.Run("from dotenv", func(t *testing.T) {
		envFile = filepath.Join(dir, "bot.env")
		content := "TELEGRAM_BOT_TOKEN=123:abc\nTELEGRAM_CHAT_ID=-1001\nDB_PATH=" + filepath.Join(dir, "r.db") + "\n"
		if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
			t.Fatalf("write env: %v", err)
		}
		// godotenv never overrides variables that are already set.
		for _, k := range []string{"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "DB_PATH"} {
			t.Setenv(k, "")
			os.Unsetenv(k)
		}

		if err := loadConfig(&cobra.Command{}, nil); err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if cfg.Telegram.ChatID != -1001 || cfg.Report.ChatID != -1001 {
			t.Fatalf("unexpected config: %+v", cfg.Telegram)
		}
	})

	t.Run("unreadable dotenv", func(t *testing.T) {
		envFile = dir // a directory cannot be parsed as a dotenv file
		err := loadConfig(&cobra.Command{}, nil)
		if !errors.Is(err, errConfig) || !strings.Contains(err.Error(), dir) {
			t.Fatalf("err = %v; want errConfig naming the file", err)
		}
	})
}

func TestParseRoster(t *testing.T) {
	good := `
roster:
  - code: "12345678"
    name: "  Nguyễn Văn An "
  - code: 87654321
    name: Trần Thị Bình
`
	entries, err := parseRoster([]byte(good))
	if err != nil {
		t.Fatalf("parseRoster: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "Nguyễn Văn An" || entries[1].Code != "87654321" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	bad := map[string]string{
		"empty":         "roster: []\n",
		"short code":    "roster:\n  - code: \"1234567\"\n    name: A\n",
		"no name":       "roster:\n  - code: \"12345678\"\n    name: \" \"\n",
		"duplicate":     "roster:\n  - code: \"12345678\"\n    name: A\n  - code: \"12345678\"\n    name: B\n",
		"unknown field": "roster:\n  - code: \"12345678\"\n    name: A\n    team: x\n",
		"not yaml":      "roster: [",
	}
	for name, in := range bad {
		if _, err := parseRoster([]byte(in)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
