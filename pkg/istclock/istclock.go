// Package istclock provides the single IST (Indian Standard Time)
// location used for every outward-facing timestamp (spec's GLOSSARY
// entry for IST): event timestamps, panel envelopes, and resync
// payloads all format through this location so there is exactly one
// place that knows the UTC+5:30 offset.
package istclock

import "time"

// Location is a fixed UTC+5:30 zone. A FixedZone is used instead of
// time.LoadLocation("Asia/Kolkata") so formatting never depends on the
// host's tzdata being installed.
var Location = time.FixedZone("IST", 5*60*60+30*60)

// Now returns the current time rendered in Location.
func Now() time.Time {
	return time.Now().In(Location)
}

// In converts t to Location without changing the instant it represents.
func In(t time.Time) time.Time {
	return t.In(Location)
}
