package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/slack-go/slack"
)

// logStep records one step-status row, logging (not propagating) write
// failures: the step log is operational visibility only.
func logStep(db *sql.DB, runDate, step, status string, apps, reviews int, errText string) {
	if err := InsertAgentRun(db, runDate, step, status, apps, reviews, errText); err != nil {
		log.Printf("agent warn step log step=%s err=%v", step, err)
	}
}

// RunDailyAgent executes one complaint-pipeline run for today's date:
// scrape apps, scrape reviews, extract complaints, aggregate, cluster
// opportunities, notify. On a fatal error the summary row is marked failed
// and the error propagates for a non-zero exit.
func RunDailyAgent(cfg Config, db *sql.DB, llm *LLMClient, api *slack.Client) error {
	now := time.Now().In(cfg.Location)
	runDate := runDateFor(now)
	log.Printf("agent start run_date=%s", runDate)

	if err := MarkSummaryRunning(db, runDate); err != nil {
		return fmt.Errorf("mark summary running: %w", err)
	}

	fail := func(step string, err error) error {
		if markErr := MarkSummaryFailed(db, runDate, err.Error()); markErr != nil {
			log.Printf("agent warn mark failed err=%v", markErr)
		}
		logStep(db, runDate, "done", "failed", 0, 0, err.Error())
		return fmt.Errorf("%s: %w", step, err)
	}

	// Step 1: top apps.
	logStep(db, runDate, "fetch_apps", "running", 0, 0, "")
	apps, err := FetchTopApps(cfg, db)
	if err != nil {
		return fail("fetch_apps", err)
	}
	logStep(db, runDate, "fetch_apps", "success", len(apps), 0, "")

	// Step 2: low-rating reviews.
	logStep(db, runDate, "fetch_reviews", "running", len(apps), 0, "")
	reviewsInserted, err := FetchReviews(cfg, db, apps)
	if err != nil {
		return fail("fetch_reviews", err)
	}
	logStep(db, runDate, "fetch_reviews", "success", len(apps), reviewsInserted, "")

	// Step 3: complaint extraction.
	logStep(db, runDate, "analyze", "running", len(apps), reviewsInserted, "")
	analyzer := NewComplaintAnalyzer(cfg, db, llm)
	complaintsFound, err := analyzer.Run(runDate, startOfDay(now))
	if err != nil {
		return fail("analyze", err)
	}
	logStep(db, runDate, "analyze", "success", len(apps), reviewsInserted, "")

	// Step 4: aggregate and save summary.
	logStep(db, runDate, "aggregate", "running", len(apps), reviewsInserted, "")
	summary, err := AggregateDailySummary(db, runDate, len(apps), reviewsInserted)
	if err != nil {
		return fail("aggregate", err)
	}
	logStep(db, runDate, "aggregate", "success", len(apps), reviewsInserted, "")

	// Step 5: per-app opportunities. Failures here don't invalidate the
	// already-complete summary.
	logStep(db, runDate, "opportunities", "running", len(apps), reviewsInserted, "")
	if _, err := GenerateOpportunities(cfg, db, llm, runDate); err != nil {
		log.Printf("agent warn opportunities err=%v", err)
		logStep(db, runDate, "opportunities", "failed", len(apps), reviewsInserted, err.Error())
	} else {
		logStep(db, runDate, "opportunities", "success", len(apps), reviewsInserted, "")
	}

	logStep(db, runDate, "done", "success", len(apps), reviewsInserted, "")
	log.Printf("agent done run_date=%s apps=%d reviews=%d complaints=%d",
		runDate, len(apps), reviewsInserted, complaintsFound)

	if api != nil && cfg.SlackChannelID != "" {
		if err := PostRunSummary(api, cfg.SlackChannelID, summary); err != nil {
			log.Printf("agent warn slack post err=%v", err)
		}
	}
	return nil
}

// RunPMJobsAgent executes one PM-jobs-pipeline run: scrape listings, then
// synthesize per-company outcomes.
func RunPMJobsAgent(cfg Config, db *sql.DB, llm *LLMClient) error {
	scrapeDate := runDateFor(time.Now().In(cfg.Location))
	log.Printf("pm agent start scrape_date=%s", scrapeDate)

	jobCount, err := FetchPMJobs(cfg, db, scrapeDate)
	if err != nil {
		return fmt.Errorf("fetch pm jobs: %w", err)
	}
	if jobCount == 0 {
		log.Printf("pm agent no jobs found")
		return nil
	}

	outcomeCount, err := GeneratePMOutcomes(cfg, db, llm, scrapeDate)
	if err != nil {
		return fmt.Errorf("generate outcomes: %w", err)
	}

	log.Printf("pm agent done jobs=%d outcomes=%d", jobCount, outcomeCount)
	return nil
}
