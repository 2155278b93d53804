package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Num is a feed number. It decodes from a JSON number, a numeric string or
// null; anything else decodes as absent instead of failing the payload.
type Num struct {
	v  float64
	ok bool
}

// NumOf returns a present Num.
func NumOf(f float64) Num {
	return Num{v: f, ok: true}
}

// Valid reports whether the value is present.
func (n Num) Valid() bool { return n.ok }

// Float returns the value and whether it is present.
func (n Num) Float() (float64, bool) { return n.v, n.ok }

// Ptr returns a pointer to a copy of the value, or nil when absent.
func (n Num) Ptr() *float64 {
	if !n.ok {
		return nil
	}
	v := n.v
	return &v
}

func (n *Num) UnmarshalJSON(b []byte) error {
	*n = Num{}
	s := string(bytes.TrimSpace(b))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		s = strings.TrimSpace(str)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	*n = Num{v: f, ok: true}
	return nil
}

func (n Num) MarshalJSON() ([]byte, error) {
	if !n.ok {
		return []byte("null"), nil
	}
	return json.Marshal(n.v)
}

// Text is a feed string. Kawabou serves codes as strings or numbers depending
// on the feed, so numbers are kept in their literal form. Anything else
// decodes as empty.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	*t = ""
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Text(strings.TrimSpace(s))
		return nil
	}
	lit := string(bytes.TrimSpace(b))
	if _, err := strconv.ParseFloat(lit, 64); err == nil {
		*t = Text(lit)
	}
	return nil
}

// SummaryFeed is the obslist per-region payload.
type SummaryFeed struct {
	Towns []TownSummary `json:"prefTwn"`
}

// TownSummary lists the dam readings of one town.
type TownSummary struct {
	TownCode Text          `json:"twnCd"`
	Dams     []Observation `json:"dam"`
}

// Observation holds the metric fields shared by the obslist and tmlist feeds.
type Observation struct {
	StationCode    Text `json:"obsFcd"`
	StationName    Text `json:"obsName"`
	RateIrrigation Num  `json:"storPcntIrr"`
	RateEffective  Num  `json:"storPcntEff"`
	Level          Num  `json:"storLvl"`
	Inflow         Num  `json:"allSink"`
	Outflow        Num  `json:"allDisch"`
	Volume         Num  `json:"storCap"`
	ObsTime        Text `json:"obsTime"`
}

// Rate returns the irrigation storage rate, falling back to the effective rate.
func (o Observation) Rate() Num {
	if o.RateIrrigation.Valid() {
		return o.RateIrrigation
	}
	return o.RateEffective
}

// Reading converts the observation into a realtime reading.
func (o Observation) Reading() Reading {
	r := Reading{
		Rate:    o.Rate().Ptr(),
		Level:   o.Level.Ptr(),
		Inflow:  o.Inflow.Ptr(),
		Outflow: o.Outflow.Ptr(),
		Volume:  o.Volume.Ptr(),
	}
	if o.ObsTime != "" {
		s := string(o.ObsTime)
		r.ObservedAt = &s
	}
	return r
}

// FeatureFeed is the gjson payload.
type FeatureFeed struct {
	Features []Feature `json:"features"`
}

// Feature is a single GeoJSON feature; only its properties are used.
type Feature struct {
	Properties FeatureProperties `json:"properties"`
}

// FeatureProperties carries station identity and location.
type FeatureProperties struct {
	StationCode Text `json:"obs_fcd"`
	Name        Text `json:"obs_nm"`
	Kana        Text `json:"obs_kana"`
	River       Text `json:"rvr_nm"`
	Lat         Num  `json:"lat"`
	Lon         Num  `json:"lon"`
	PrefCode    Text `json:"pref_cd"`
}

// DetailFeed is the tmlist per-station payload.
type DetailFeed struct {
	Value *Observation `json:"obsValue"`
}
