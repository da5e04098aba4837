package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// complaintsPerAppCap bounds how many complaints go into one clustering
// prompt (most severe first).
const complaintsPerAppCap = 100

const maxOpportunitiesPerApp = 5

// appPacing is the pause between per-app LLM calls.
const appPacing = time.Second

// GenerateOpportunities asks the LLM, per app with complaints on runDate,
// to group that app's complaints into 3-5 product opportunities. Existing
// opportunities for the date are cleared first so re-runs overwrite.
// Per-app failures are logged and skipped.
func GenerateOpportunities(cfg Config, db *sql.DB, llm *LLMClient, runDate string) (int, error) {
	apps, err := GetAppsWithComplaints(db, runDate)
	if err != nil {
		return 0, fmt.Errorf("fetch apps with complaints: %w", err)
	}
	log.Printf("opportunities apps=%d run_date=%s", len(apps), runDate)
	if len(apps) == 0 {
		return 0, nil
	}

	if err := DeleteOpportunitiesByRunDate(db, runDate); err != nil {
		return 0, fmt.Errorf("clear opportunities: %w", err)
	}

	total := 0
	for _, app := range apps {
		complaints, err := GetComplaintsForApp(db, app.AppID, runDate, complaintsPerAppCap)
		if err != nil {
			log.Printf("opportunities warn app=%s err=%v", app.AppID, err)
			continue
		}
		if len(complaints) == 0 {
			continue
		}

		clusters, err := llm.ClusterOpportunities(app.Name, complaints)
		if err != nil {
			log.Printf("opportunities warn app=%s err=%v", app.Name, err)
			time.Sleep(appPacing)
			continue
		}
		if len(clusters) == 0 {
			continue
		}
		if len(clusters) > maxOpportunitiesPerApp {
			clusters = clusters[:maxOpportunitiesPerApp]
		}

		opps := make([]Opportunity, 0, len(clusters))
		for _, cl := range clusters {
			var complaintIDs []int64
			for _, idx := range cl.Indices {
				if idx < 0 || idx >= len(complaints) {
					continue
				}
				complaintIDs = append(complaintIDs, complaints[idx].ID)
			}
			opps = append(opps, Opportunity{
				AppID:        app.AppID,
				RunDate:      runDate,
				Title:        cl.Title,
				Description:  cl.Description,
				ReviewCount:  len(cl.Indices),
				ComplaintIDs: complaintIDs,
			})
		}

		if err := InsertOpportunities(db, opps); err != nil {
			log.Printf("opportunities warn insert app=%s err=%v", app.Name, err)
		} else {
			log.Printf("opportunities app=%s stored=%d", app.Name, len(opps))
			total += len(opps)
		}

		time.Sleep(appPacing)
	}

	log.Printf("opportunities done total=%d", total)
	return total, nil
}
