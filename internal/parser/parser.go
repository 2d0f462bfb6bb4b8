// Package parser turns raw search-provider text into candidate event
// records. Three strategies run in order, stopping at the first that yields
// anything: an embedded JSON array, a markdown pipe table, then a
// low-confidence sentence fallback.
package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/eventscout/eventscout/internal/models"
)

// Confidence discriminates how a parse result was obtained so callers can
// decide whether fallback records count toward success.
type Confidence string

const (
	// ConfidenceStructured means a JSON array or markdown table parsed cleanly.
	ConfidenceStructured Confidence = "structured"
	// ConfidenceFallback means only sentence extraction produced records.
	ConfidenceFallback Confidence = "fallback"
	// ConfidenceEmpty means no strategy produced any records.
	ConfidenceEmpty Confidence = "empty"
)

// Result is the outcome of parsing one provider response.
type Result struct {
	Records    []models.EventRecord
	Confidence Confidence
}

// minimum cells for a markdown table row to be accepted as an event.
const minTableCells = 7

// minimum sentence length for the fallback extractor.
const minSentenceLen = 40

// Parse extracts candidate event records from raw provider text. Category
// normalization is a later step; fields may be partially empty.
func Parse(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{Confidence: ConfidenceEmpty}
	}

	if records := parseJSONArray(trimmed); len(records) > 0 {
		return Result{Records: records, Confidence: ConfidenceStructured}
	}

	if records := parseMarkdownTable(trimmed); len(records) > 0 {
		return Result{Records: records, Confidence: ConfidenceStructured}
	}

	if records := parseSentences(trimmed); len(records) > 0 {
		return Result{Records: records, Confidence: ConfidenceFallback}
	}

	return Result{Confidence: ConfidenceEmpty}
}

var noEventsPatterns = []string{
	"no events",
	"keine veranstaltungen",
	"keine events",
	"nothing found",
	"nichts gefunden",
	"no upcoming events",
}

// SaysNoEvents reports whether the raw response explicitly states that no
// events exist, distinguishing a true empty result from unparseable content.
func SaysNoEvents(raw string) bool {
	lower := strings.ToLower(raw)
	for _, p := range noEventsPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// jsonRecord mirrors the field names providers tend to emit.
type jsonRecord struct {
	Title     string `json:"title"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	Time      string `json:"time"`
	EndTime   string `json:"end_time"`
	Venue     string `json:"venue"`
	Location  string `json:"location"`
	Address   string `json:"address"`
	Price     string `json:"price"`
	URL       string `json:"url"`
	SourceURL string `json:"source_url"`
	Link      string `json:"link"`
}

var trailingCommaRegex = regexp.MustCompile(`,\s*([\]}])`)

// parseJSONArray locates a [...] span, optionally inside a fenced code
// block, strips trailing commas and attempts to decode it.
func parseJSONArray(raw string) []models.EventRecord {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil
	}

	span := trailingCommaRegex.ReplaceAllString(raw[start:end+1], "$1")

	var items []jsonRecord
	if err := json.Unmarshal([]byte(span), &items); err != nil {
		return nil
	}

	records := make([]models.EventRecord, 0, len(items))
	for _, item := range items {
		rec := models.EventRecord{
			Title:     firstNonEmpty(item.Title, item.Name),
			Category:  item.Category,
			Date:      item.Date,
			StartTime: firstNonEmpty(item.StartTime, item.Time),
			EndTime:   item.EndTime,
			Venue:     firstNonEmpty(item.Venue, item.Location),
			Address:   item.Address,
			PriceText: item.Price,
			SourceURL: firstNonEmpty(item.SourceURL, item.URL, item.Link),
			Source:    models.SourceProvider,
		}
		if strings.TrimSpace(rec.Title) == "" {
			continue
		}
		records = append(records, rec)
	}
	return records
}

var tableSeparatorRegex = regexp.MustCompile(`^[\s|:-]+$`)

// parseMarkdownTable extracts rows from a pipe table. The first
// non-separator line is the header; a row needs at least minTableCells
// cells and a non-empty title to be accepted.
func parseMarkdownTable(raw string) []models.EventRecord {
	var rows [][]string
	headerSeen := false

	for _, line := range strings.Split(raw, "\n") {
		if strings.Count(line, "|") < 2 {
			continue
		}
		if tableSeparatorRegex.MatchString(line) {
			continue
		}

		cells := splitTableRow(line)
		if !headerSeen {
			headerSeen = true
			continue
		}
		rows = append(rows, cells)
	}

	var records []models.EventRecord
	for _, cells := range rows {
		if len(cells) < minTableCells {
			continue
		}
		rec := models.EventRecord{
			Title:     cells[0],
			Category:  cells[1],
			Date:      cells[2],
			StartTime: cells[3],
			Venue:     cells[4],
			Address:   cells[5],
			PriceText: cells[6],
			Source:    models.SourceProvider,
		}
		if len(cells) > 7 {
			rec.SourceURL = cells[7]
		}
		if rec.Title == "" {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// splitTableRow splits a table line on pipes, trimming each cell and
// discarding the empty leading/trailing cells produced by boundary pipes.
func splitTableRow(line string) []string {
	parts := strings.Split(line, "|")
	if len(parts) > 0 && strings.TrimSpace(parts[0]) == "" {
		parts = parts[1:]
	}
	if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

var sentenceSplitRegex = regexp.MustCompile(`[.!?]\s+`)

// parseSentences is the last resort for prose responses: one minimal
// placeholder record per sufficiently long sentence. Callers must treat
// these as low confidence.
func parseSentences(raw string) []models.EventRecord {
	var records []models.EventRecord
	for _, sentence := range sentenceSplitRegex.Split(raw, -1) {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) < minSentenceLen {
			continue
		}
		records = append(records, models.EventRecord{
			Title:  sentence,
			Source: models.SourceProvider,
		})
	}
	return records
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
