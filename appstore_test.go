package main

import (
	"encoding/json"
	"testing"
)

// The iTunes review feed wraps every field in a {"label": ...} object.
func TestReviewsFeedDecoding(t *testing.T) {
	raw := `{
		"feed": {
			"entry": [
				{
					"id": {"label": "987654"},
					"author": {"name": {"label": "someuser"}},
					"im:rating": {"label": "1"},
					"title": {"label": "Terrible update"},
					"content": {"label": "Crashes every time I open it."},
					"updated": {"label": "2026-08-28T10:00:00-07:00"}
				},
				{
					"id": {"label": "123"},
					"title": {"label": "Some App Name"},
					"im:rating": {"label": ""}
				}
			]
		}
	}`

	var feed reviewsFeed
	if err := json.Unmarshal([]byte(raw), &feed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(feed.Feed.Entry) != 2 {
		t.Fatalf("got %d entries, want 2", len(feed.Feed.Entry))
	}

	e := feed.Feed.Entry[0]
	if e.ID.Label != "987654" || e.Rating.Label != "1" || e.Author.Name.Label != "someuser" {
		t.Fatalf("first entry: %+v", e)
	}
	if e.Content.Label != "Crashes every time I open it." {
		t.Fatalf("content = %q", e.Content.Label)
	}
	// The second entry has no parsable rating; the scraper skips such rows.
	if feed.Feed.Entry[1].Rating.Label != "" {
		t.Fatalf("second rating = %q", feed.Feed.Entry[1].Rating.Label)
	}
}

func TestTopAppsFeedDecoding(t *testing.T) {
	raw := `{
		"feed": {
			"results": [
				{
					"id": "123456",
					"name": "Some Game",
					"artistName": "Some Studio",
					"artworkUrl100": "https://example.com/icon.png",
					"genres": [{"name": "Games"}, {"name": "Puzzle"}]
				}
			]
		}
	}`

	var feed topAppsFeed
	if err := json.Unmarshal([]byte(raw), &feed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(feed.Feed.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(feed.Feed.Results))
	}
	r := feed.Feed.Results[0]
	if r.ID != "123456" || r.Name != "Some Game" || r.Genres[0].Name != "Games" {
		t.Fatalf("result: %+v", r)
	}
}
