package main

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMapExtractedClampsSeverity(t *testing.T) {
	batch := makeReviewRows(3)
	extracted := []extractedComplaint{
		{ReviewIndex: 0, Text: "a", Category: "Bugs/Crashes", Severity: 0},
		{ReviewIndex: 1, Text: "b", Category: "Performance", Severity: 9},
		{ReviewIndex: 2, Text: "c", Category: "UI/UX", Severity: 3},
	}

	complaints := mapExtracted(batch, extracted, "2026-08-29")
	if len(complaints) != 3 {
		t.Fatalf("got %d complaints, want 3", len(complaints))
	}
	if complaints[0].Severity != 1 {
		t.Errorf("severity 0 clamped to %d, want 1", complaints[0].Severity)
	}
	if complaints[1].Severity != 5 {
		t.Errorf("severity 9 clamped to %d, want 5", complaints[1].Severity)
	}
	if complaints[2].Severity != 3 {
		t.Errorf("severity 3 became %d", complaints[2].Severity)
	}
}

func TestMapExtractedDropsOutOfRangeIndices(t *testing.T) {
	batch := makeReviewRows(5)
	extracted := []extractedComplaint{
		{ReviewIndex: -1, Text: "neg", Category: "UI/UX", Severity: 2},
		{ReviewIndex: 5, Text: "past end", Category: "UI/UX", Severity: 2},
		{ReviewIndex: 4, Text: "last valid", Category: "UI/UX", Severity: 2},
	}

	complaints := mapExtracted(batch, extracted, "2026-08-29")
	if len(complaints) != 1 {
		t.Fatalf("got %d complaints, want 1", len(complaints))
	}
	if complaints[0].ReviewID != batch[4].ID {
		t.Fatalf("complaint maps to review %d, want %d", complaints[0].ReviewID, batch[4].ID)
	}
}

func TestMapExtractedCarriesAppCategory(t *testing.T) {
	batch := []ReviewRow{{ID: 7, AppID: "app1", AppCategory: "Games", Rating: 1, Body: "bad"}}
	extracted := []extractedComplaint{{ReviewIndex: 0, Text: "crashes", Category: "Bugs/Crashes", Severity: 4}}

	complaints := mapExtracted(batch, extracted, "2026-08-29")
	if len(complaints) != 1 || complaints[0].AppCategory != "Games" {
		t.Fatalf("complaints = %+v", complaints)
	}
}

func seedReviews(t *testing.T, db *sql.DB, n int) {
	t.Helper()
	if err := UpsertApps(db, []App{{AppID: "app1", Name: "App One", AppCategory: "Games"}}); err != nil {
		t.Fatalf("seed app: %v", err)
	}
	now := time.Now()
	reviews := make([]Review, n)
	for i := range reviews {
		reviews[i] = Review{
			AppID:      "app1",
			ITunesID:   fmt.Sprintf("r%d", i),
			Rating:     1,
			Title:      fmt.Sprintf("title %d", i),
			Body:       fmt.Sprintf("body %d", i),
			ReviewDate: now,
			ScrapedAt:  now,
		}
	}
	if _, err := InsertReviews(db, reviews); err != nil {
		t.Fatalf("seed reviews: %v", err)
	}
}

// Exercises the full batched run: 45 reviews at batch size 20 makes three
// batches, the second of which is rate limited once with a wait hint.
func TestAnalyzerRunBatchedWithRateLimit(t *testing.T) {
	db := newTestDB(t)
	seedReviews(t, db, 45)

	runDate := "2026-08-29"
	since := time.Now().Add(-time.Hour)

	var calls int
	var batchSizes []int
	var waits []time.Duration

	extract := func(inputs []reviewInput) ([]extractedComplaint, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("429: rate_limit_error: please try again in 3s")
		}
		batchSizes = append(batchSizes, len(inputs))
		out := make([]extractedComplaint, len(inputs))
		for i, in := range inputs {
			out[i] = extractedComplaint{ReviewIndex: in.Index, Text: "complaint " + in.Title, Category: "Bugs/Crashes", Severity: 3}
		}
		return out, nil
	}

	a := &ComplaintAnalyzer{
		cfg:     Config{LLMBatchSize: 20, BatchDelaySeconds: 6},
		db:      db,
		extract: extract,
		retry: RetryPolicy{
			MaxRetries:  5,
			DefaultWait: 15 * time.Second,
			Sleep:       func(d time.Duration) { waits = append(waits, d) },
		},
		pause: func(time.Duration) {},
	}

	total, err := a.Run(runDate, since)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if total != 45 {
		t.Fatalf("total = %d, want 45", total)
	}
	// Three batches plus one retry of the second.
	if calls != 4 {
		t.Fatalf("extract calls = %d, want 4", calls)
	}
	if len(batchSizes) != 3 || batchSizes[0] != 20 || batchSizes[1] != 20 || batchSizes[2] != 5 {
		t.Fatalf("batch sizes = %v, want [20 20 5]", batchSizes)
	}
	if len(waits) != 1 || waits[0] != 3500*time.Millisecond {
		t.Fatalf("rate-limit waits = %v, want [3.5s]", waits)
	}

	count, err := CountComplaintsByRunDate(db, runDate)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 45 {
		t.Fatalf("persisted %d complaints, want 45", count)
	}
}

// A second run over the same reviews and run date must skip everything.
func TestAnalyzerRunIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	seedReviews(t, db, 30)

	runDate := "2026-08-29"
	since := time.Now().Add(-time.Hour)

	calls := 0
	extract := func(inputs []reviewInput) ([]extractedComplaint, error) {
		calls++
		out := make([]extractedComplaint, len(inputs))
		for i, in := range inputs {
			out[i] = extractedComplaint{ReviewIndex: in.Index, Text: "x", Category: "Performance", Severity: 2}
		}
		return out, nil
	}

	a := &ComplaintAnalyzer{
		cfg:     Config{LLMBatchSize: 20, BatchDelaySeconds: 6},
		db:      db,
		extract: extract,
		retry:   RetryPolicy{MaxRetries: 5, DefaultWait: time.Second, Sleep: func(time.Duration) {}},
		pause:   func(time.Duration) {},
	}

	if _, err := a.Run(runDate, since); err != nil {
		t.Fatalf("first run: %v", err)
	}
	callsAfterFirst := calls

	total, err := a.Run(runDate, since)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if total != 0 {
		t.Fatalf("second run extracted %d, want 0", total)
	}
	if calls != callsAfterFirst {
		t.Fatalf("second run made %d extra calls", calls-callsAfterFirst)
	}

	count, _ := CountComplaintsByRunDate(db, runDate)
	if count != 30 {
		t.Fatalf("persisted %d complaints, want 30", count)
	}
}

// Exhausted retries abort the run; already-persisted batches survive.
func TestAnalyzerRunAbortsOnPersistentRateLimit(t *testing.T) {
	db := newTestDB(t)
	seedReviews(t, db, 40)

	runDate := "2026-08-29"
	since := time.Now().Add(-time.Hour)

	calls := 0
	extract := func(inputs []reviewInput) ([]extractedComplaint, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("429: rate_limit_error")
		}
		out := make([]extractedComplaint, len(inputs))
		for i, in := range inputs {
			out[i] = extractedComplaint{ReviewIndex: in.Index, Text: "x", Category: "UI/UX", Severity: 1}
		}
		return out, nil
	}

	a := &ComplaintAnalyzer{
		cfg:     Config{LLMBatchSize: 20, BatchDelaySeconds: 6},
		db:      db,
		extract: extract,
		retry:   RetryPolicy{MaxRetries: 2, DefaultWait: time.Second, Sleep: func(time.Duration) {}},
		pause:   func(time.Duration) {},
	}

	total, err := a.Run(runDate, since)
	if err == nil {
		t.Fatal("expected error from exhausted retries")
	}
	if total != 20 {
		t.Fatalf("total = %d, want 20 from the first batch", total)
	}
	count, _ := CountComplaintsByRunDate(db, runDate)
	if count != 20 {
		t.Fatalf("persisted %d complaints, want 20", count)
	}
}
