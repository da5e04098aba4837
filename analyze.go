package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// ComplaintAnalyzer drives batched extraction: dedup gate, partitioning,
// one sequential LLM call per batch with rate-limit retry, then mapping and
// persisting each batch's results before moving on. The extract call and
// pacing are injectable for tests.
type ComplaintAnalyzer struct {
	cfg     Config
	db      *sql.DB
	extract func([]reviewInput) ([]extractedComplaint, error)
	retry   RetryPolicy
	pause   func(time.Duration)
}

func NewComplaintAnalyzer(cfg Config, db *sql.DB, llm *LLMClient) *ComplaintAnalyzer {
	return &ComplaintAnalyzer{
		cfg:     cfg,
		db:      db,
		extract: llm.ExtractComplaints,
		retry:   NewRetryPolicy(cfg.LLMMaxRetries),
		pause:   time.Sleep,
	}
}

// Run analyzes all reviews scraped since the given time that are not yet
// covered by a complaint for runDate. Returns the number of complaints
// extracted. A failed dedup lookup or an exhausted retry aborts the run;
// a failed per-batch insert only loses that batch's results.
func (a *ComplaintAnalyzer) Run(runDate string, since time.Time) (int, error) {
	reviews, err := GetReviewsForAnalysis(a.db, since)
	if err != nil {
		return 0, fmt.Errorf("fetch reviews for analysis: %w", err)
	}
	if len(reviews) == 0 {
		log.Printf("analyze no reviews to analyze run_date=%s", runDate)
		return 0, nil
	}

	processed, err := GetProcessedReviewIDs(a.db, runDate)
	if err != nil {
		return 0, fmt.Errorf("fetch processed review ids: %w", err)
	}
	toProcess := filterUnprocessed(reviews, processed)
	log.Printf("analyze run_date=%s reviews=%d skipped=%d processing=%d batch_size=%d",
		runDate, len(reviews), len(reviews)-len(toProcess), len(toProcess), a.cfg.LLMBatchSize)

	batches := partitionReviews(toProcess, a.cfg.LLMBatchSize)

	total := 0
	for i, batch := range batches {
		inputs := make([]reviewInput, len(batch))
		for idx, r := range batch {
			inputs[idx] = reviewInput{Index: idx, Rating: r.Rating, Title: r.Title, Body: r.Body}
		}

		var extracted []extractedComplaint
		err := a.retry.Do(func() error {
			var callErr error
			extracted, callErr = a.extract(inputs)
			return callErr
		})
		if err != nil {
			return total, fmt.Errorf("extract batch %d/%d: %w", i+1, len(batches), err)
		}

		complaints := mapExtracted(batch, extracted, runDate)
		if len(complaints) > 0 {
			if err := InsertComplaints(a.db, complaints); err != nil {
				// This batch's results are lost; the run continues.
				log.Printf("analyze warn insert complaints batch=%d err=%v", i+1, err)
			}
		}
		total += len(complaints)

		if (i+1)%10 == 0 || i+1 == len(batches) {
			log.Printf("analyze progress batches=%d/%d complaints=%d", i+1, len(batches), total)
		}

		// Pace requests to stay under the provider's TPM ceiling.
		if i+1 < len(batches) {
			a.pause(a.cfg.BatchDelay())
		}
	}

	log.Printf("analyze done run_date=%s complaints=%d", runDate, total)
	return total, nil
}

// mapExtracted resolves batch-local indices back to review rows and builds
// persistable complaints. Items whose index falls outside the batch are
// dropped; severity is clamped into [1,5]. Deterministic given its inputs.
func mapExtracted(batch []ReviewRow, extracted []extractedComplaint, runDate string) []Complaint {
	var complaints []Complaint
	for _, e := range extracted {
		if e.ReviewIndex < 0 || e.ReviewIndex >= len(batch) {
			log.Printf("analyze dropped item with out-of-range index=%d batch_len=%d", e.ReviewIndex, len(batch))
			continue
		}
		review := batch[e.ReviewIndex]
		complaints = append(complaints, Complaint{
			ReviewID:    review.ID,
			AppID:       review.AppID,
			AppCategory: review.AppCategory,
			Category:    e.Category,
			Text:        e.Text,
			Severity:    clampSeverity(e.Severity),
			RunDate:     runDate,
		})
	}
	return complaints
}
