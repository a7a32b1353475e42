package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-report-bot/internal/domain"
	"github.com/tbourn/go-report-bot/internal/format"
	"github.com/tbourn/go-report-bot/internal/repo"
)

// rosterFile is the import format:
//
//	roster:
//	  - code: "12345678"
//	    name: Nguyễn Văn An
type rosterFile struct {
	Roster []domain.RosterEntry `yaml:"roster"`
}

// parseRoster decodes and checks a roster file. Codes must be 8 digits and
// unique; names are trimmed and must not be empty.
func parseRoster(data []byte) ([]domain.RosterEntry, error) {
	var f rosterFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if len(f.Roster) == 0 {
		return nil, errors.New("parse roster: no entries")
	}
	seen := make(map[string]struct{}, len(f.Roster))
	out := make([]domain.RosterEntry, 0, len(f.Roster))
	for i, e := range f.Roster {
		e.Code = strings.TrimSpace(e.Code)
		e.Name = strings.TrimSpace(e.Name)
		if !format.IsCode(e.Code) {
			return nil, fmt.Errorf("parse roster: entry %d: code %q is not 8 digits", i+1, e.Code)
		}
		if e.Name == "" {
			return nil, fmt.Errorf("parse roster: entry %d: empty name", i+1)
		}
		if _, dup := seen[e.Code]; dup {
			return nil, fmt.Errorf("parse roster: entry %d: duplicate code %s", i+1, e.Code)
		}
		seen[e.Code] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}

// runRosterImport upserts the entries of a YAML file. An operator runs it by
// hand, so any failure is returned and exits non-zero.
func runRosterImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	entries, err := parseRoster(data)
	if err != nil {
		return err
	}

	db, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	n, err := repo.UpsertRoster(cmd.Context(), db, cfg.Store.Tables.Roster, entries)
	if err != nil {
		return fmt.Errorf("import roster: %w", err)
	}
	log.Info().Int("entries", len(entries)).Int64("rows", n).Str("file", args[0]).Msg("roster imported")
	return nil
}
