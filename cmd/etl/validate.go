package main

import (
	"fmt"
	"io"
	"regexp"
	"sort"

	"github.com/couchcryptid/dam-data-etl/internal/domain"
)

const maxRate = 200

var feedTimestampPattern = regexp.MustCompile(`^\d{8}/\d{4}$`)

// phase tracks pass/fail for a validation phase. Notes are informational
// and never fail the phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// validateCompleteness checks that the snapshot holds exactly one entry per
// curated dam.
func validateCompleteness(dams []domain.Dam, snap domain.Snapshot) *phase {
	p := &phase{name: "Snapshot completeness"}

	curated := make(map[string]bool, len(dams))
	for _, d := range dams {
		if d.ID == "" {
			p.errorf("curated dam %q has no id", d.Name)
			continue
		}
		curated[d.ID] = true
		if _, ok := snap.Entries[d.ID]; !ok {
			p.errorf("%s (%s): missing from snapshot", d.ID, d.Name)
		}
	}
	for _, id := range snap.IDs {
		if !curated[id] {
			p.errorf("%s: not in the curated list", id)
		}
	}
	if snap.GeneratedAt.IsZero() {
		p.errorf("snapshot has no valid _timestamp")
	}
	return p
}

// validateReadings checks rate bounds and flag consistency.
func validateReadings(snap domain.Snapshot) *phase {
	p := &phase{name: "Reading bounds"}
	for _, id := range snap.IDs {
		e := snap.Entries[id]
		if e.Approximate && e.Rate == nil {
			p.errorf("%s: flagged approximate without a rate", id)
		}
		if e.Rate == nil {
			continue
		}
		// Estimates above the bound come from an m3 volume larger than the
		// capacity and are reported, not rejected.
		switch r := *e.Rate; {
		case r < 0:
			p.errorf("%s: rate %.1f below 0", id, r)
		case e.Approximate && r > 100:
			p.notef("%s: estimated rate %.1f above 100", id, r)
		case r > maxRate:
			p.errorf("%s: rate %.1f outside 0..%d", id, r, maxRate)
		}
	}
	return p
}

// validateMaster checks that every station carries a name and a town code.
func validateMaster(m domain.MasterFile) *phase {
	p := &phase{name: "Master entries"}
	if !feedTimestampPattern.MatchString(m.TimestampUsed) {
		p.errorf("_timestamp_used %q is not a feed timestamp", m.TimestampUsed)
	}
	if len(m.Stations) == 0 {
		p.errorf("master has no stations")
	}
	for _, code := range sortedKeys(m.Stations) {
		s := m.Stations[code]
		if s.Name == "" {
			p.errorf("%s: empty name", code)
		}
		if s.TownCode == "" {
			p.errorf("%s: empty town code", code)
		}
	}
	return p
}

// reportCoverage lists curated dams that no master station name resolves to.
// Such dams can still be reached through the geographic fallback, so the
// result is informational.
func reportCoverage(dams []domain.Dam, m domain.MasterFile, aliases map[string]string) *phase {
	p := &phase{name: "Master coverage"}
	matcher := domain.NewMatcher(domain.NewNameLookup(dams), aliases, domain.DefaultQualifiers)

	covered := make(map[string]bool)
	for _, s := range m.Stations {
		if id, _, ok := matcher.Match(s.Name); ok {
			covered[id] = true
		}
	}
	for _, d := range dams {
		if d.ID != "" && !covered[d.ID] {
			p.notef("%s (%s): no master station", d.ID, d.Name)
		}
	}
	return p
}

// report prints the phase summary and details, returning whether all passed.
func report(w io.Writer, phases []*phase) bool {
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-32s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() && len(p.notes) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
		for _, n := range p.notes {
			fmt.Fprintf(w, "  note: %s\n", n)
		}
	}
	return allPassed
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
