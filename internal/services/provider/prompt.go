package provider

import "fmt"

// BuildPrompt renders the search instruction for one city/date/category.
// The provider is asked for a fixed-column markdown table so responses stay
// machine-parseable; free text is handled by downstream fallbacks.
func BuildPrompt(city, date, category string) string {
	return fmt.Sprintf(`Search the web for real "%s" events taking place in %s on %s.

List every event you can verify for that exact date. Respond with a markdown table
with exactly these columns, one event per row:

| Title | Category | Date | Start Time | Venue | Address | Price | Source URL |

Rules:
- Date must be in YYYY-MM-DD format, times in 24-hour HH:MM format.
- Leave a cell empty when the information is not available; do not guess.
- Include the most specific source URL you found for each event.
- Do not include events from other days or other cities.
- If you find no events for this category on this date, answer with the single
  sentence: "No events found."`, category, city, date)
}
