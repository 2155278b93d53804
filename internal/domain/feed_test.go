package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNum_Unmarshal(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  float64
		valid bool
	}{
		{"number", `55.3`, 55.3, true},
		{"integer", `15000`, 15000, true},
		{"numeric string", `"42.1"`, 42.1, true},
		{"padded string", `" 7 "`, 7, true},
		{"null", `null`, 0, false},
		{"dash string", `"-"`, 0, false},
		{"empty string", `""`, 0, false},
		{"object", `{"v":1}`, 0, false},
		{"bool", `true`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var wrapper struct {
				V Num `json:"v"`
			}
			require.NoError(t, json.Unmarshal([]byte(`{"v":`+tt.in+`}`), &wrapper))
			got, ok := wrapper.V.Float()
			assert.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.InDelta(t, tt.want, got, 1e-9)
			} else {
				assert.Nil(t, wrapper.V.Ptr())
			}
		})
	}
}

func TestNum_Marshal(t *testing.T) {
	b, err := json.Marshal(struct {
		A Num `json:"a"`
		B Num `json:"b"`
	}{A: NumOf(35.5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":35.5,"b":null}`, string(b))
}

func TestText_Unmarshal(t *testing.T) {
	var v struct {
		A Text `json:"a"`
		B Text `json:"b"`
		C Text `json:"c"`
		D Text `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":" 3901363 ","b":39,"c":null,"d":[1]}`), &v))
	assert.Equal(t, Text("3901363"), v.A)
	assert.Equal(t, Text("39"), v.B)
	assert.Equal(t, Text(""), v.C)
	assert.Equal(t, Text(""), v.D)
}

func TestSummaryFeed_Decode(t *testing.T) {
	data := []byte(`{"prefTwn":[
		{"twnCd":"3901363","dam":[{"obsFcd":"2255200700004","obsName":"","storPcntIrr":null,"storPcntEff":"72.4","storLvl":320.15,"allSink":12.3,"allDisch":"8.1","storCap":"150000","obsTime":"2026/02/12 17:10"}]},
		{"twnCd":"3901364"}
	]}`)

	var feed SummaryFeed
	require.NoError(t, json.Unmarshal(data, &feed))
	require.Len(t, feed.Towns, 2)
	assert.Empty(t, feed.Towns[1].Dams)

	obs := feed.Towns[0].Dams[0]
	assert.Equal(t, Text("2255200700004"), obs.StationCode)

	r := obs.Reading()
	require.NotNil(t, r.Rate)
	assert.Equal(t, 72.4, *r.Rate)
	assert.Equal(t, 320.15, *r.Level)
	assert.Equal(t, 12.3, *r.Inflow)
	assert.Equal(t, 8.1, *r.Outflow)
	assert.Equal(t, 150000.0, *r.Volume)
	assert.Equal(t, "2026/02/12 17:10", *r.ObservedAt)
	assert.False(t, r.Approximate)
}

func TestObservation_RatePrefersIrrigation(t *testing.T) {
	obs := Observation{RateIrrigation: NumOf(40), RateEffective: NumOf(60)}
	v, ok := obs.Rate().Float()
	assert.True(t, ok)
	assert.Equal(t, 40.0, v)

	obs = Observation{RateEffective: NumOf(60)}
	v, _ = obs.Rate().Float()
	assert.Equal(t, 60.0, v)

	assert.Nil(t, Observation{}.Reading().Rate)
	assert.Nil(t, Observation{}.Reading().ObservedAt)
}

func TestFeatureFeed_Decode(t *testing.T) {
	data := []byte(`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[133.56,33.76]},
		"properties":{"obs_fcd":"2255200700004","obs_nm":"早明浦ダム","obs_kana":"さめうらだむ","rvr_nm":"吉野川","lat":33.76,"lon":133.56,"pref_cd":39}}]}`)

	var feed FeatureFeed
	require.NoError(t, json.Unmarshal(data, &feed))
	require.Len(t, feed.Features, 1)

	p := feed.Features[0].Properties
	assert.Equal(t, Text("2255200700004"), p.StationCode)
	assert.Equal(t, Text("早明浦ダム"), p.Name)
	assert.Equal(t, Text("さめうらだむ"), p.Kana)
	assert.Equal(t, Text("吉野川"), p.River)
	assert.Equal(t, Text("39"), p.PrefCode)
	lat, _ := p.Lat.Float()
	assert.Equal(t, 33.76, lat)
}

func TestDetailFeed_Decode(t *testing.T) {
	var feed DetailFeed
	require.NoError(t, json.Unmarshal([]byte(`{"obsValue":{"storCap":12000000,"storLvl":"99.5","obsTime":"2026/02/12 17:00"}}`), &feed))
	require.NotNil(t, feed.Value)
	assert.Equal(t, 12_000_000.0, *feed.Value.Reading().Volume)

	var empty DetailFeed
	require.NoError(t, json.Unmarshal([]byte(`{}`), &empty))
	assert.Nil(t, empty.Value)
}

func TestFloorTime(t *testing.T) {
	in := time.Date(2026, time.February, 12, 17, 19, 42, 5, JST)
	assert.Equal(t, time.Date(2026, time.February, 12, 17, 10, 0, 0, JST), FloorTime(in, 10*time.Minute))
	assert.Equal(t, time.Date(2026, time.February, 12, 17, 15, 0, 0, JST), FloorTime(in, 5*time.Minute))

	utc := time.Date(2026, time.February, 12, 8, 19, 0, 0, time.UTC)
	assert.Equal(t, "20260212/1710", FeedTimestamp(FloorTime(utc, 10*time.Minute)))
}

func TestParseObsTime(t *testing.T) {
	got, err := ParseObsTime("2026/02/12 17:13")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.February, 12, 17, 13, 0, 0, JST), got)

	_, err = ParseObsTime("12 Feb 2026")
	assert.Error(t, err)
}

func TestRegionCodes(t *testing.T) {
	codes := RegionCodes()
	require.Len(t, codes, 50)
	assert.Equal(t, "0201", codes[0])
	assert.Equal(t, "4701", codes[45])
	assert.Equal(t, []string{"102", "103", "104", "105"}, codes[46:])
	assert.NotContains(t, codes, "0101")
}

func TestGeoScanCodes(t *testing.T) {
	codes := GeoScanCodes()
	require.Len(t, codes, 47)
	assert.Equal(t, "101", codes[0])
	assert.Equal(t, "3901", codes[38])
	assert.Equal(t, "4701", codes[46])
}

func TestDam_Capacity(t *testing.T) {
	c, ok := Dam{EffectiveCapacity: NumOf(5_000_000)}.Capacity()
	assert.True(t, ok)
	assert.Equal(t, 5_000_000.0, c)

	_, ok = Dam{EffectiveCapacity: NumOf(0)}.Capacity()
	assert.False(t, ok)
	_, ok = Dam{}.Capacity()
	assert.False(t, ok)
}
