package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// approximateCeiling is the estimated rate above which the volume is assumed
// to already be in m3 rather than thousands of m3.
const approximateCeiling = 200

// EstimateFillRate derives a fill rate in percent from a stored volume and an
// effective capacity in m3. The volume is read as thousands of m3 first; if
// that exceeds 200% it is read as m3. The result is rounded to one decimal.
func EstimateFillRate(volume, effectiveCapacity float64) (float64, bool) {
	if effectiveCapacity <= 0 || math.IsNaN(volume) || math.IsInf(volume, 0) {
		return 0, false
	}
	rate := volume * 1000 / effectiveCapacity * 100
	if rate > approximateCeiling {
		rate = volume / effectiveCapacity * 100
	}
	return math.Round(rate*10) / 10, true
}

// SnapshotEntry is the published state of one curated dam.
type SnapshotEntry struct {
	Rate        *float64 `json:"rate"`
	Level       *float64 `json:"level"`
	Inflow      *float64 `json:"inflow"`
	Outflow     *float64 `json:"outflow"`
	UpdatedAt   *string  `json:"updatedAt"`
	Approximate bool     `json:"isApproximate,omitempty"`
}

// Populated reports whether any upstream value reached this entry.
func (e SnapshotEntry) Populated() bool {
	return e.Rate != nil || e.Level != nil || e.Inflow != nil || e.Outflow != nil || e.UpdatedAt != nil
}

// Snapshot is the realtime output: one entry per curated dam, in curated order.
type Snapshot struct {
	GeneratedAt time.Time
	IDs         []string
	Entries     map[string]SnapshotEntry
}

// SnapshotStats summarizes a snapshot for logs and metrics.
type SnapshotStats struct {
	Total       int
	Populated   int
	Approximate int
}

// Stats counts populated and approximate entries.
func (s Snapshot) Stats() SnapshotStats {
	st := SnapshotStats{Total: len(s.IDs)}
	for _, id := range s.IDs {
		e := s.Entries[id]
		if e.Populated() {
			st.Populated++
		}
		if e.Approximate {
			st.Approximate++
		}
	}
	return st
}

// Fuse merges per-dam readings into a complete snapshot. Every curated dam
// gets exactly one entry; dams without a reading get null fields. A missing
// rate is estimated from the stored volume when the dam has a known
// capacity. Supplied rates are never replaced.
func Fuse(dams []Dam, readings map[string]Reading, generatedAt time.Time) Snapshot {
	capacities := make(map[string]float64, len(dams))
	for _, d := range dams {
		if c, ok := d.Capacity(); ok {
			capacities[d.ID] = c
		}
	}

	snap := Snapshot{
		GeneratedAt: generatedAt,
		IDs:         make([]string, 0, len(dams)),
		Entries:     make(map[string]SnapshotEntry, len(dams)),
	}
	for _, d := range dams {
		if d.ID == "" {
			continue
		}
		if _, seen := snap.Entries[d.ID]; seen {
			continue
		}
		snap.IDs = append(snap.IDs, d.ID)

		r, ok := readings[d.ID]
		if !ok {
			snap.Entries[d.ID] = SnapshotEntry{}
			continue
		}
		if r.Rate == nil && r.Volume != nil {
			if c, ok := capacities[d.ID]; ok {
				if rate, ok := EstimateFillRate(*r.Volume, c); ok {
					r.Rate = &rate
					r.Approximate = true
				}
			}
		}
		snap.Entries[d.ID] = SnapshotEntry{
			Rate:        r.Rate,
			Level:       r.Level,
			Inflow:      r.Inflow,
			Outflow:     r.Outflow,
			UpdatedAt:   r.ObservedAt,
			Approximate: r.Approximate,
		}
	}
	return snap
}

const snapshotTimestampKey = "_timestamp"

// MarshalJSON writes "_timestamp" first and then one member per dam in
// curated order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	ts, err := json.Marshal(s.GeneratedAt.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"` + snapshotTimestampKey + `":`)
	buf.Write(ts)

	for _, id := range s.IDs {
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.Entries[id])
		if err != nil {
			return nil, fmt.Errorf("marshal entry %s: %w", id, err)
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a snapshot back, preserving member order.
func (s *Snapshot) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("decode snapshot: expected object")
	}

	out := Snapshot{Entries: make(map[string]SnapshotEntry)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
		key, _ := tok.(string)

		if key == snapshotTimestampKey {
			var raw string
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("decode snapshot timestamp: %w", err)
			}
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				out.GeneratedAt = t
			}
			continue
		}

		var e SnapshotEntry
		if err := dec.Decode(&e); err != nil {
			return fmt.Errorf("decode snapshot entry %s: %w", key, err)
		}
		if _, seen := out.Entries[key]; !seen {
			out.IDs = append(out.IDs, key)
		}
		out.Entries[key] = e
	}

	*s = out
	return nil
}
