// Package domain models river fishing conditions and the rules that rank them.
//
// # Data Sources
//
// Each monitored river is a static [RiverSite] paired with two live signals:
//
//   - Weather: the first entry of the OpenWeather 5 day / 3 hour forecast for
//     the river's coordinate, requested in imperial units.
//   - Gauge height: USGS National Water Information System instantaneous
//     values, parameter code 00065 (gauge height, feet), for the river's
//     USGS site number.
//
// # Gauge Conventions
//
// Readings are ordered most-recent-first before they reach this package, so
// index 0 is always the current reading. The historical reading is the one
// whose age relative to current lies in the 23h–25h window:
//
//	current  T
//	T-6h     too recent
//	T-23h    inside the window  <- selected
//	T-25h1m  too old
//
// When nothing lands in the window the oldest available reading is used
// instead. USGS reports missing measurements with the sentinel -999999; those
// become unavailable readings, as do values that fail to parse.
//
// # Scoring
//
// [Score] is evaluated in a fixed order:
//
//	closed river               -> -1, nothing else evaluated
//	anticipated return         +return/1000
//	gauge trend                dropping +10 | stable +5 | rising, unknown +0
//	sky                        contains "cloud" +8, contains "rain" +5 (both may apply)
//	weekday                    Tue-Thu +10 | Mon, Fri +5 | Sat, Sun +0
//	total                      rounded half up
//
// Distance, precipitation probability, and wind speed are displayed with each
// record but never contribute to the score.
//
// # Degradation
//
// Upstream failures never abort a record. A failed forecast is replaced by
// [PlaceholderWeather]; a failed gauge lookup yields [SentinelGaugeSample].
// Scoring always runs, so in the worst case a river is ranked by its return
// size, access status, and the day of the week alone.
package domain
