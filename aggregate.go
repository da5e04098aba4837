package main

import (
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

const topComplaintsLimit = 20

// topComplaintKeyLen is how much lowercased text two complaints must share
// to count as the same complaint in the top list.
const topComplaintKeyLen = 100

// AggregateDailySummary folds all persisted complaints for the run date
// into the summary row and upserts it with status "complete". Safe to
// repeat: a re-run overwrites the previous summary.
func AggregateDailySummary(db *sql.DB, runDate string, appsScraped, reviewsProcessed int) (DailySummary, error) {
	rows, err := GetComplaintsByRunDate(db, runDate)
	if err != nil {
		return DailySummary{}, fmt.Errorf("fetch complaints for aggregation: %w", err)
	}

	summary := buildSummary(runDate, rows, appsScraped, reviewsProcessed)
	summary.Status = "complete"
	summary.CompletedAt = time.Now().UTC()

	if err := UpsertDailySummary(db, summary); err != nil {
		return DailySummary{}, fmt.Errorf("upsert summary: %w", err)
	}

	log.Printf("aggregate done run_date=%s complaints=%d app_categories=%d",
		runDate, summary.ComplaintsFound, len(summary.ByAppCategory))
	return summary, nil
}

// buildSummary computes the histograms and top-complaints list. Pure.
func buildSummary(runDate string, rows []ComplaintRow, appsScraped, reviewsProcessed int) DailySummary {
	byComplaint := make(map[string]int)
	for _, row := range rows {
		byComplaint[row.Category]++
	}

	byApp := make(map[string]map[string]int)
	for _, row := range rows {
		sub := byApp[row.AppCategory]
		if sub == nil {
			sub = make(map[string]int)
			byApp[row.AppCategory] = sub
		}
		sub[row.Category]++
	}

	return DailySummary{
		RunDate:             runDate,
		AppsScraped:         appsScraped,
		ReviewsProcessed:    reviewsProcessed,
		ComplaintsFound:     len(rows),
		ByComplaintCategory: byComplaint,
		ByAppCategory:       byApp,
		TopComplaints:       topComplaints(rows, topComplaintsLimit),
	}
}

// topComplaints ranks complaints by frequency of truncated, lowercased
// text. Each entry keeps the first-seen app and category as its
// representative; ties keep first-encountered order (stable sort on count
// only).
func topComplaints(rows []ComplaintRow, limit int) []TopComplaint {
	freq := make(map[string]*TopComplaint)
	var order []string
	for _, row := range rows {
		key := strings.ToLower(truncateText(row.Text, topComplaintKeyLen))
		entry, ok := freq[key]
		if !ok {
			entry = &TopComplaint{Text: key, Category: row.Category, App: row.AppName}
			freq[key] = entry
			order = append(order, key)
		}
		entry.Count++
	}

	top := make([]TopComplaint, 0, len(order))
	for _, key := range order {
		top = append(top, *freq[key])
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Count > top[j].Count })
	if len(top) > limit {
		top = top[:limit]
	}
	return top
}
