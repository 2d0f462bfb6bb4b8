// -----------------------------------------------------------------------
// EventRecord - parsed event data and merge/dedup rules
// -----------------------------------------------------------------------

package models

import (
	"strings"
	"time"
)

// Provenance tags recording which subsystem produced an event record.
// A record that survived a merge carries a comma-joined union of tags.
const (
	SourceCache    = "cache"
	SourceProvider = "provider"
	SourceScraper  = "scraper"
)

// DateLayout is the calendar-day format used across jobs, cache keys and
// event records.
const DateLayout = "2006-01-02"

// timeLayout is the clock format accepted for start/end times.
const timeLayout = "15:04"

// defaultEventDuration is assumed when a record has a start time but no
// explicit end time.
const defaultEventDuration = 3 * time.Hour

// EventRecord is one parsed event. Records are immutable once produced by a
// parse step; later steps only filter or merge lists of them.
type EventRecord struct {
	Title          string     `json:"title"`
	Category       string     `json:"category,omitempty"`
	Date           string     `json:"date,omitempty"`       // YYYY-MM-DD
	StartTime      string     `json:"start_time,omitempty"` // HH:MM, optional
	EndTime        string     `json:"end_time,omitempty"`   // HH:MM, optional
	Venue          string     `json:"venue,omitempty"`
	Address        string     `json:"address,omitempty"`
	PriceText      string     `json:"price,omitempty"`
	SourceURL      string     `json:"source_url,omitempty"`
	Source         string     `json:"source"` // provenance tag(s), comma-joined
	CacheExpiresAt *time.Time `json:"cache_expires_at,omitempty"`
}

// Key returns the composite dedup key (title, venue, date, start time).
// Case and surrounding whitespace are ignored.
func (e *EventRecord) Key() string {
	parts := []string{e.Title, e.Venue, e.Date, e.StartTime}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, "|")
}

// EffectiveEnd returns the instant at which the event is considered over:
// the explicit end time if present, otherwise start time plus three hours,
// otherwise the end of the event's calendar day. The zero time is returned
// when the record carries no parseable date at all.
func (e *EventRecord) EffectiveEnd() time.Time {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(e.Date), time.Local)
	if err != nil {
		return time.Time{}
	}

	if end, err := time.ParseInLocation(timeLayout, strings.TrimSpace(e.EndTime), time.Local); err == nil {
		return time.Date(day.Year(), day.Month(), day.Day(), end.Hour(), end.Minute(), 0, 0, time.Local)
	}

	if start, err := time.ParseInLocation(timeLayout, strings.TrimSpace(e.StartTime), time.Local); err == nil {
		startAt := time.Date(day.Year(), day.Month(), day.Day(), start.Hour(), start.Minute(), 0, 0, time.Local)
		return startAt.Add(defaultEventDuration)
	}

	return EndOfDay(day)
}

// EndOfDay returns 23:59:59 local time for the given day.
func EndOfDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, time.Local)
}

// MergeSources unions two comma-separated provenance tag lists,
// deduplicated and order-preserving.
func MergeSources(a, b string) string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range []string{a, b} {
		for _, tag := range strings.Split(list, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return strings.Join(out, ",")
}

// MergeRecords merges incoming records into existing ones, deduplicating by
// composite key. On collision the existing record is kept and only its
// provenance is unioned with the incoming record's, so the merge is
// commutative and idempotent at the record-set level.
func MergeRecords(existing, incoming []EventRecord) []EventRecord {
	merged := make([]EventRecord, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing))

	for _, rec := range existing {
		index[rec.Key()] = len(merged)
		merged = append(merged, rec)
	}

	for _, rec := range incoming {
		key := rec.Key()
		if i, ok := index[key]; ok {
			merged[i].Source = MergeSources(merged[i].Source, rec.Source)
			continue
		}
		index[key] = len(merged)
		merged = append(merged, rec)
	}

	return merged
}

// FilterValidNow drops records whose effective end instant has already
// passed. Records without any date information are kept; the surrounding
// cache entry's own TTL bounds their lifetime.
func FilterValidNow(records []EventRecord, now time.Time) []EventRecord {
	out := make([]EventRecord, 0, len(records))
	for _, rec := range records {
		end := rec.EffectiveEnd()
		if end.IsZero() || end.After(now) {
			out = append(out, rec)
		}
	}
	return out
}

// FilterByCategory returns the records whose category matches (case-insensitive).
func FilterByCategory(records []EventRecord, category string) []EventRecord {
	if category == "" {
		return records
	}
	want := strings.ToLower(strings.TrimSpace(category))
	out := make([]EventRecord, 0, len(records))
	for _, rec := range records {
		if strings.ToLower(strings.TrimSpace(rec.Category)) == want {
			out = append(out, rec)
		}
	}
	return out
}
