package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/eventscout/eventscout/internal/models"
)

func eventsURL(city, date, category string) string {
	v := url.Values{}
	v.Set("city", city)
	v.Set("date", date)
	if category != "" {
		v.Set("category", category)
	}
	return "/api/events?" + v.Encode()
}

type eventsResponse struct {
	City   string               `json:"city"`
	Date   string               `json:"date"`
	Count  int                  `json:"count"`
	Events []models.EventRecord `json:"events"`
}

func TestGetEventsFromDayBucket(t *testing.T) {
	_, eventHandler, storage := newTestEnv(t, "")
	ctx := context.Background()
	date := time.Now().AddDate(0, 0, 3).Format(models.DateLayout)

	key := models.CacheKey{City: "Wien", Date: date}
	records := []models.EventRecord{
		{Title: "Jazz Night", Category: "Live-Konzerte", Date: date, StartTime: "20:00", Venue: "Porgy & Bess", Source: models.SourceProvider},
		{Title: "House Friday", Category: "Clubs/Discos", Date: date, StartTime: "23:00", Venue: "Flex", Source: models.SourceProvider},
	}
	if err := storage.EventCache().UpsertDayBucket(ctx, key, records); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, eventsURL("Wien", date, ""), nil)
	rec := httptest.NewRecorder()
	eventHandler.GetEventsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Expected Cache-Control no-store, got %q", got)
	}

	var resp eventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 {
		t.Errorf("Expected 2 events, got %d", resp.Count)
	}
}

func TestGetEventsCategoryFilterAcceptsAliases(t *testing.T) {
	_, eventHandler, storage := newTestEnv(t, "")
	ctx := context.Background()
	date := time.Now().AddDate(0, 0, 3).Format(models.DateLayout)

	key := models.CacheKey{City: "Wien", Date: date}
	records := []models.EventRecord{
		{Title: "Jazz Night", Category: "Live-Konzerte", Date: date, Source: models.SourceProvider},
		{Title: "House Friday", Category: "Clubs/Discos", Date: date, Source: models.SourceProvider},
	}
	if err := storage.EventCache().UpsertDayBucket(ctx, key, records); err != nil {
		t.Fatal(err)
	}

	// "nightlife" is an alias of the canonical Clubs/Discos category.
	req := httptest.NewRequest(http.MethodGet, eventsURL("Wien", date, "nightlife"), nil)
	rec := httptest.NewRecorder()
	eventHandler.GetEventsHandler(rec, req)

	var resp eventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Events[0].Title != "House Friday" {
		t.Errorf("Expected only the club event, got %+v", resp.Events)
	}
}

func TestGetEventsFallsBackToShards(t *testing.T) {
	_, eventHandler, storage := newTestEnv(t, "")
	ctx := context.Background()
	date := time.Now().AddDate(0, 0, 2).Format(models.DateLayout)

	// Only a shard exists, no day bucket.
	key := models.CacheKey{City: "Graz", Date: date, Category: "Sport"}
	records := []models.EventRecord{
		{Title: "Stadtlauf", Category: "Sport", Date: date, Source: models.SourceProvider},
	}
	if err := storage.EventCache().SetCategoryShard(ctx, key, records, time.Hour); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, eventsURL("Graz", date, ""), nil)
	rec := httptest.NewRecorder()
	eventHandler.GetEventsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp eventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Events[0].Title != "Stadtlauf" {
		t.Errorf("Expected shard fallback to serve the event, got %+v", resp.Events)
	}
}

func TestGetEventsValidation(t *testing.T) {
	_, eventHandler, _ := newTestEnv(t, "")

	tests := []struct {
		name string
		url  string
	}{
		{"missing city", "/api/events?date=2025-06-01"},
		{"missing date", "/api/events?city=Wien"},
		{"malformed date", "/api/events?city=Wien&date=June+1st"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rec := httptest.NewRecorder()
			eventHandler.GetEventsHandler(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestIngestEventsIsIdempotent(t *testing.T) {
	_, eventHandler, storage := newTestEnv(t, "")
	date := time.Now().AddDate(0, 0, 4).Format(models.DateLayout)

	body := `{"city":"Wien","date":"` + date + `","events":[
		{"title":"Sommernacht Vernissage","category":"ausstellung","venue":"Albertina","date":"` + date + `"},
		{"title":"Jazz Night","category":"Live-Konzerte","venue":"Porgy & Bess","date":"` + date + `","start_time":"20:00"}
	]}`

	rec := postJSON(t, eventHandler.IngestEventsHandler, "/api/events/ingest", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Replay the same batch; the merge must not duplicate records.
	rec = postJSON(t, eventHandler.IngestEventsHandler, "/api/events/ingest", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 on replay, got %d", rec.Code)
	}

	bucket, err := storage.EventCache().GetDayBucket(context.Background(), models.CacheKey{City: "Wien", Date: date})
	if err != nil {
		t.Fatal(err)
	}
	if len(bucket.Records) != 2 {
		t.Fatalf("Expected 2 records after replay, got %d", len(bucket.Records))
	}
	for _, r := range bucket.Records {
		if r.Source != models.SourceScraper {
			t.Errorf("Expected scraper provenance, got %q", r.Source)
		}
	}

	// The ingest also warms the normalized category shard.
	shard, err := storage.EventCache().GetCategoryShard(context.Background(), models.CacheKey{City: "Wien", Date: date, Category: "Kunst & Ausstellungen"})
	if err != nil {
		t.Fatalf("Expected Kunst & Ausstellungen shard, got %v", err)
	}
	if len(shard) != 1 || shard[0].Title != "Sommernacht Vernissage" {
		t.Errorf("Unexpected shard contents: %+v", shard)
	}
}

func TestIngestValidation(t *testing.T) {
	_, eventHandler, _ := newTestEnv(t, "")

	tests := []struct {
		name string
		body string
	}{
		{"missing city", `{"date":"2025-06-01","events":[{"title":"X"}]}`},
		{"empty events", `{"city":"Wien","date":"2025-06-01","events":[]}`},
		{"invalid JSON", `{"city":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, eventHandler.IngestEventsHandler, "/api/events/ingest", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
		})
	}
}
