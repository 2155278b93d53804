// Package domain models Kawabou reservoir telemetry and its reconciliation
// against a curated dam list.
//
// # Data Source
//
// Kawabou (https://www.river.go.jp/kawabou/) is the river information portal
// of the Ministry of Land, Infrastructure, Transport and Tourism. It publishes
// three JSON feeds this project consumes:
//
//	obslist  files/obslist/twninfo/tm/dam/{region}.json
//	         per-region summary. Towns ("prefTwn") each carry a list of dam
//	         readings keyed by station code ("obsFcd"). Station names in this
//	         feed are usually empty.
//	gjson    gjson/obs/{YYYYMMDD}/{HHMM}/dam/{code}.json
//	         GeoJSON features for a town or region at a published 10-minute
//	         slot. Carries names, kana, river and coordinates but no metrics.
//	tmlist   files/tmlist/dam/{YYYYMMDD}/{HHMM}/{obsFcd}.json
//	         per-station detail with an "obsValue" object mirroring the
//	         obslist metric fields.
//
// # Kawabou Data Conventions
//
// Region codes:
//
//	Prefectures use "<JIS code>01": "0201" (Aomori) .. "4701" (Okinawa).
//	Hokkaido is not served under "0101"; it is split into the sub-regions
//	"102" (Dohoku), "103" (Doto), "104" (Doo) and "105" (Donan).
//
// Time format:
//
//	"obsTime" is "2006/01/02 15:04" in Japan Standard Time. Feed timestamps in
//	URLs are "20060102/1504", aligned to 10 minutes for gjson master data.
//
// Metrics:
//
//	storPcntIrr  storage rate against irrigation capacity (%), preferred
//	storPcntEff  storage rate against effective capacity (%)
//	storLvl      water level (m)
//	allSink      total inflow (m3/s)
//	allDisch     total outflow (m3/s)
//	storCap      stored volume, usually in thousands of m3
//
// Any metric may be null, a number or a numeric string. Unparseable values are
// treated as absent.
//
// # Name Reconciliation
//
// Kawabou names and curated names differ in spacing, institutional
// qualifiers such as "（機構）" and occasional renames (新桂沢ダム for 桂沢ダム).
// [NormalizeName] removes whitespace and [Matcher] applies exact, qualifier,
// alias and prefix matching in that order.
//
// # Fill-Rate Estimation
//
// When a station reports a volume but no rate, [EstimateFillRate] derives one
// from the curated effective capacity. The volume unit is undocumented: it is
// assumed to be thousands of m3 unless that yields more than 200%, in which
// case it is read as m3. Estimates are flagged approximate.
package domain
