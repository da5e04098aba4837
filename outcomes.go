package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// jobsPerCompanyCap bounds how many job descriptions go into one
// clustering prompt.
const jobsPerCompanyCap = 10

const maxOutcomesPerCompany = 5

// companyPacing is the pause between per-company LLM calls.
const companyPacing = 800 * time.Millisecond

// GeneratePMOutcomes asks the LLM, per company scraped on scrapeDate, for
// 3-5 outcome themes across that company's job descriptions. Existing
// outcomes for the date are cleared first so re-runs overwrite. Per-company
// failures are logged and skipped; only the setup queries are fatal.
func GeneratePMOutcomes(cfg Config, db *sql.DB, llm *LLMClient, scrapeDate string) (int, error) {
	companies, err := GetCompaniesScrapedOn(db, scrapeDate)
	if err != nil {
		return 0, fmt.Errorf("fetch companies: %w", err)
	}
	log.Printf("pm_outcomes companies=%d scrape_date=%s", len(companies), scrapeDate)
	if len(companies) == 0 {
		return 0, nil
	}

	if err := DeleteOutcomesByDate(db, scrapeDate); err != nil {
		return 0, fmt.Errorf("clear outcomes: %w", err)
	}

	total := 0
	for _, company := range companies {
		jobs, err := GetJobsForCompany(db, company.ID, jobsPerCompanyCap)
		if err != nil {
			log.Printf("pm_outcomes warn company=%s err=%v", company.ID, err)
			continue
		}
		if len(jobs) == 0 {
			continue
		}

		clusters, err := llm.ClusterOutcomes(company.Name, jobs)
		if err != nil {
			log.Printf("pm_outcomes warn company=%s err=%v", company.Name, err)
			time.Sleep(companyPacing)
			continue
		}
		if len(clusters) == 0 {
			continue
		}
		if len(clusters) > maxOutcomesPerCompany {
			clusters = clusters[:maxOutcomesPerCompany]
		}

		outcomes := make([]PMOutcome, 0, len(clusters))
		for _, cl := range clusters {
			var jobIDs []string
			for _, idx := range cl.Indices {
				if idx < 0 || idx >= len(jobs) {
					continue
				}
				jobIDs = append(jobIDs, jobs[idx].ID)
			}
			outcomes = append(outcomes, PMOutcome{
				CompanyID:   company.ID,
				CompanyName: company.Name,
				ScrapedDate: scrapeDate,
				Title:       cl.Title,
				Description: cl.Description,
				JobCount:    len(cl.Indices),
				JobIDs:      jobIDs,
			})
		}

		if err := InsertPMOutcomes(db, outcomes); err != nil {
			log.Printf("pm_outcomes warn insert company=%s err=%v", company.Name, err)
		} else {
			log.Printf("pm_outcomes company=%s outcomes=%d", company.Name, len(outcomes))
			total += len(outcomes)
		}

		time.Sleep(companyPacing)
	}

	log.Printf("pm_outcomes done total=%d", total)
	return total, nil
}
