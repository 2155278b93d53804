package domain

// Station is a master record describing one Kawabou dam station.
// The station code is the key of [MasterFile.Stations].
type Station struct {
	Name     string `json:"name"`
	Kana     string `json:"kana"`
	River    string `json:"river"`
	Lat      Num    `json:"lat"`
	Lon      Num    `json:"lon"`
	PrefCode string `json:"prefCd"`
	TownCode string `json:"twnCd"`
}

// MasterFile is the persisted master mapping.
type MasterFile struct {
	Updated       string             `json:"_updated"`
	TimestampUsed string             `json:"_timestamp_used"`
	Stations      map[string]Station `json:"dams"`
}

// Dam is a curated reservoir of interest, identified independently of Kawabou.
type Dam struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// EffectiveCapacity is in m3; zero or absent means unknown.
	EffectiveCapacity Num `json:"effectiveCapacity"`
}

// Capacity returns the effective capacity when it is known and positive.
func (d Dam) Capacity() (float64, bool) {
	c, ok := d.EffectiveCapacity.Float()
	if !ok || c <= 0 {
		return 0, false
	}
	return c, true
}

// DamList is the curated list file.
type DamList struct {
	Dams []Dam `json:"dams"`
}

// Reading is the live state of one curated dam for a single run.
type Reading struct {
	Rate        *float64
	Level       *float64
	Inflow      *float64
	Outflow     *float64
	Volume      *float64
	ObservedAt  *string
	Approximate bool
}
