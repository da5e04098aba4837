package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS apps (
		app_id       TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		developer    TEXT DEFAULT '',
		app_category TEXT DEFAULT 'Uncategorized',
		icon_url     TEXT DEFAULT '',
		current_rank INTEGER DEFAULT 0,
		avg_rating   REAL DEFAULT 0,
		last_scraped DATETIME
	);

	CREATE TABLE IF NOT EXISTS reviews (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		app_id      TEXT NOT NULL,
		itunes_id   TEXT NOT NULL,
		rating      INTEGER NOT NULL,
		title       TEXT DEFAULT '',
		body        TEXT NOT NULL,
		author      TEXT DEFAULT '',
		review_date DATETIME,
		scraped_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(app_id, itunes_id)
	);
	CREATE INDEX IF NOT EXISTS idx_reviews_scraped_at ON reviews(scraped_at);

	CREATE TABLE IF NOT EXISTS complaints (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		review_id          INTEGER NOT NULL,
		app_id             TEXT NOT NULL,
		app_category       TEXT DEFAULT 'Unknown',
		complaint_category TEXT NOT NULL,
		complaint_text     TEXT NOT NULL,
		severity           INTEGER NOT NULL,
		run_date           TEXT NOT NULL,
		created_at         DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(review_id, run_date)
	);
	CREATE INDEX IF NOT EXISTS idx_complaints_run_date ON complaints(run_date);
	CREATE INDEX IF NOT EXISTS idx_complaints_app ON complaints(app_id);

	CREATE TABLE IF NOT EXISTS daily_summaries (
		run_date              TEXT PRIMARY KEY,
		apps_scraped          INTEGER DEFAULT 0,
		reviews_processed     INTEGER DEFAULT 0,
		complaints_found      INTEGER DEFAULT 0,
		by_complaint_category TEXT DEFAULT '{}',
		by_app_category       TEXT DEFAULT '{}',
		top_complaints        TEXT DEFAULT '[]',
		status                TEXT NOT NULL DEFAULT 'running',
		error                 TEXT DEFAULT '',
		completed_at          DATETIME
	);

	CREATE TABLE IF NOT EXISTS agent_runs (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		run_date          TEXT NOT NULL,
		step              TEXT NOT NULL,
		status            TEXT NOT NULL,
		apps_processed    INTEGER DEFAULT 0,
		reviews_processed INTEGER DEFAULT 0,
		error             TEXT DEFAULT '',
		completed_at      DATETIME,
		created_at        DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_agent_runs_date ON agent_runs(run_date);

	CREATE TABLE IF NOT EXISTS app_opportunities (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		app_id        TEXT NOT NULL,
		run_date      TEXT NOT NULL,
		title         TEXT NOT NULL,
		description   TEXT DEFAULT '',
		review_count  INTEGER DEFAULT 0,
		complaint_ids TEXT DEFAULT '[]',
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_opportunities_run_date ON app_opportunities(run_date);

	CREATE TABLE IF NOT EXISTS pm_companies (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		job_count    INTEGER DEFAULT 0,
		last_scraped TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS pm_jobs (
		id           TEXT PRIMARY KEY,
		company_id   TEXT NOT NULL,
		company_name TEXT DEFAULT '',
		title        TEXT NOT NULL,
		location     TEXT DEFAULT '',
		level        TEXT DEFAULT '',
		description  TEXT DEFAULT '',
		url          TEXT DEFAULT '',
		posted_date  TEXT DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_pm_jobs_company ON pm_jobs(company_id);

	CREATE TABLE IF NOT EXISTS pm_outcomes (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id   TEXT NOT NULL,
		company_name TEXT DEFAULT '',
		scraped_date TEXT NOT NULL,
		title        TEXT NOT NULL,
		description  TEXT DEFAULT '',
		job_count    INTEGER DEFAULT 0,
		job_ids      TEXT DEFAULT '[]',
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_pm_outcomes_date ON pm_outcomes(scraped_date);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// --- Apps ---

func UpsertApps(db *sql.DB, apps []App) error {
	if len(apps) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO apps (app_id, name, developer, app_category, icon_url, current_rank, avg_rating, last_scraped)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(app_id) DO UPDATE SET
		   name = excluded.name,
		   developer = excluded.developer,
		   app_category = excluded.app_category,
		   icon_url = excluded.icon_url,
		   current_rank = excluded.current_rank,
		   avg_rating = excluded.avg_rating,
		   last_scraped = excluded.last_scraped`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range apps {
		if _, err := stmt.Exec(
			a.AppID, a.Name, a.Developer, a.AppCategory, a.IconURL,
			a.CurrentRank, a.AvgRating, a.LastScraped,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// --- Reviews ---

// InsertReviews inserts reviews, silently skipping rows that collide with
// the UNIQUE(app_id, itunes_id) constraint. Returns the number of new rows.
func InsertReviews(db *sql.DB, reviews []Review) (int, error) {
	if len(reviews) == 0 {
		return 0, nil
	}
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO reviews (app_id, itunes_id, rating, title, body, author, review_date, scraped_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range reviews {
		res, err := stmt.Exec(
			r.AppID, r.ITunesID, r.Rating, r.Title, r.Body, r.Author,
			r.ReviewDate, r.ScrapedAt,
		)
		if err != nil {
			return inserted, err
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, tx.Commit()
}

// GetReviewsForAnalysis returns reviews scraped at or after since, joined
// with their app's category, oldest first.
func GetReviewsForAnalysis(db *sql.DB, since time.Time) ([]ReviewRow, error) {
	rows, err := db.Query(
		`SELECT r.id, r.app_id, COALESCE(a.app_category, 'Unknown'), r.rating, r.title, r.body
		 FROM reviews r
		 LEFT JOIN apps a ON a.app_id = r.app_id
		 WHERE r.scraped_at >= ?
		 ORDER BY r.scraped_at, r.id`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReviewRow
	for rows.Next() {
		var r ReviewRow
		if err := rows.Scan(&r.ID, &r.AppID, &r.AppCategory, &r.Rating, &r.Title, &r.Body); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Complaints ---

// GetProcessedReviewIDs returns the ids of reviews that already have a
// persisted complaint for the given run date.
func GetProcessedReviewIDs(db *sql.DB, runDate string) (map[int64]bool, error) {
	rows, err := db.Query(`SELECT review_id FROM complaints WHERE run_date = ?`, runDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	processed := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		processed[id] = true
	}
	return processed, rows.Err()
}

// InsertComplaints inserts complaints, relying on UNIQUE(review_id, run_date)
// to make re-runs a no-op for already-covered reviews.
func InsertComplaints(db *sql.DB, complaints []Complaint) error {
	if len(complaints) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO complaints (review_id, app_id, app_category, complaint_category, complaint_text, severity, run_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range complaints {
		if _, err := stmt.Exec(
			c.ReviewID, c.AppID, c.AppCategory, c.Category, c.Text, c.Severity, c.RunDate,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func GetComplaintsByRunDate(db *sql.DB, runDate string) ([]ComplaintRow, error) {
	rows, err := db.Query(
		`SELECT c.app_id, COALESCE(a.name, c.app_id), c.app_category, c.complaint_category, c.complaint_text, c.severity
		 FROM complaints c
		 LEFT JOIN apps a ON a.app_id = c.app_id
		 WHERE c.run_date = ?
		 ORDER BY c.id`,
		runDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ComplaintRow
	for rows.Next() {
		var c ComplaintRow
		if err := rows.Scan(&c.AppID, &c.AppName, &c.AppCategory, &c.Category, &c.Text, &c.Severity); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func CountComplaintsByRunDate(db *sql.DB, runDate string) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM complaints WHERE run_date = ?`, runDate).Scan(&count)
	return count, err
}

// GetAppsWithComplaints returns distinct (app_id, app name) pairs that have
// at least one complaint for the run date.
func GetAppsWithComplaints(db *sql.DB, runDate string) ([]App, error) {
	rows, err := db.Query(
		`SELECT DISTINCT c.app_id, COALESCE(a.name, c.app_id)
		 FROM complaints c
		 LEFT JOIN apps a ON a.app_id = c.app_id
		 WHERE c.run_date = ?
		 ORDER BY c.app_id`,
		runDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []App
	for rows.Next() {
		var a App
		if err := rows.Scan(&a.AppID, &a.Name); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetComplaintsForApp returns up to limit complaints for one app and run
// date, most severe first. Used to bound clustering prompt size.
func GetComplaintsForApp(db *sql.DB, appID, runDate string, limit int) ([]Complaint, error) {
	rows, err := db.Query(
		`SELECT id, review_id, app_id, app_category, complaint_category, complaint_text, severity, run_date
		 FROM complaints
		 WHERE app_id = ? AND run_date = ?
		 ORDER BY severity DESC, id
		 LIMIT ?`,
		appID, runDate, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Complaint
	for rows.Next() {
		var c Complaint
		if err := rows.Scan(&c.ID, &c.ReviewID, &c.AppID, &c.AppCategory, &c.Category, &c.Text, &c.Severity, &c.RunDate); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Daily summaries ---

// MarkSummaryRunning upserts the run's summary row with status "running" so
// dashboard readers can observe an in-progress run.
func MarkSummaryRunning(db *sql.DB, runDate string) error {
	_, err := db.Exec(
		`INSERT INTO daily_summaries (run_date, status, error)
		 VALUES (?, 'running', '')
		 ON CONFLICT(run_date) DO UPDATE SET status = 'running', error = ''`,
		runDate,
	)
	return err
}

func MarkSummaryFailed(db *sql.DB, runDate, errText string) error {
	_, err := db.Exec(
		`INSERT INTO daily_summaries (run_date, status, error, completed_at)
		 VALUES (?, 'failed', ?, ?)
		 ON CONFLICT(run_date) DO UPDATE SET status = 'failed', error = excluded.error, completed_at = excluded.completed_at`,
		runDate, errText, time.Now().UTC(),
	)
	return err
}

// UpsertDailySummary overwrites the full summary row for the run date.
func UpsertDailySummary(db *sql.DB, s DailySummary) error {
	byComplaint, err := json.Marshal(s.ByComplaintCategory)
	if err != nil {
		return fmt.Errorf("marshal by_complaint_category: %w", err)
	}
	byApp, err := json.Marshal(s.ByAppCategory)
	if err != nil {
		return fmt.Errorf("marshal by_app_category: %w", err)
	}
	top, err := json.Marshal(s.TopComplaints)
	if err != nil {
		return fmt.Errorf("marshal top_complaints: %w", err)
	}

	_, err = db.Exec(
		`INSERT INTO daily_summaries
		 (run_date, apps_scraped, reviews_processed, complaints_found, by_complaint_category, by_app_category, top_complaints, status, error, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_date) DO UPDATE SET
		   apps_scraped = excluded.apps_scraped,
		   reviews_processed = excluded.reviews_processed,
		   complaints_found = excluded.complaints_found,
		   by_complaint_category = excluded.by_complaint_category,
		   by_app_category = excluded.by_app_category,
		   top_complaints = excluded.top_complaints,
		   status = excluded.status,
		   error = excluded.error,
		   completed_at = excluded.completed_at`,
		s.RunDate, s.AppsScraped, s.ReviewsProcessed, s.ComplaintsFound,
		string(byComplaint), string(byApp), string(top),
		s.Status, s.Error, s.CompletedAt,
	)
	return err
}

func GetDailySummary(db *sql.DB, runDate string) (DailySummary, error) {
	var s DailySummary
	var byComplaint, byApp, top string
	var completedAt sql.NullTime
	err := db.QueryRow(
		`SELECT run_date, apps_scraped, reviews_processed, complaints_found,
		        by_complaint_category, by_app_category, top_complaints, status, error, completed_at
		 FROM daily_summaries WHERE run_date = ?`,
		runDate,
	).Scan(
		&s.RunDate, &s.AppsScraped, &s.ReviewsProcessed, &s.ComplaintsFound,
		&byComplaint, &byApp, &top, &s.Status, &s.Error, &completedAt,
	)
	if err != nil {
		return s, err
	}
	if completedAt.Valid {
		s.CompletedAt = completedAt.Time
	}
	if err := json.Unmarshal([]byte(byComplaint), &s.ByComplaintCategory); err != nil {
		return s, fmt.Errorf("unmarshal by_complaint_category: %w", err)
	}
	if err := json.Unmarshal([]byte(byApp), &s.ByAppCategory); err != nil {
		return s, fmt.Errorf("unmarshal by_app_category: %w", err)
	}
	if err := json.Unmarshal([]byte(top), &s.TopComplaints); err != nil {
		return s, fmt.Errorf("unmarshal top_complaints: %w", err)
	}
	return s, nil
}

// --- Agent run steps ---

// InsertAgentRun appends one step-status row. Step rows exist purely for
// operational visibility; the summary row is the source of truth.
func InsertAgentRun(db *sql.DB, runDate, step, status string, apps, reviews int, errText string) error {
	var completedAt any
	if status != "running" {
		completedAt = time.Now().UTC()
	}
	_, err := db.Exec(
		`INSERT INTO agent_runs (run_date, step, status, apps_processed, reviews_processed, error, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runDate, step, status, apps, reviews, errText, completedAt,
	)
	return err
}

// --- Opportunities ---

func DeleteOpportunitiesByRunDate(db *sql.DB, runDate string) error {
	_, err := db.Exec(`DELETE FROM app_opportunities WHERE run_date = ?`, runDate)
	return err
}

func InsertOpportunities(db *sql.DB, opps []Opportunity) error {
	if len(opps) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO app_opportunities (app_id, run_date, title, description, review_count, complaint_ids)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range opps {
		ids, err := json.Marshal(o.ComplaintIDs)
		if err != nil {
			return fmt.Errorf("marshal complaint_ids: %w", err)
		}
		if _, err := stmt.Exec(o.AppID, o.RunDate, o.Title, o.Description, o.ReviewCount, string(ids)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func GetOpportunitiesByRunDate(db *sql.DB, runDate string) ([]Opportunity, error) {
	rows, err := db.Query(
		`SELECT id, app_id, run_date, title, description, review_count, complaint_ids
		 FROM app_opportunities WHERE run_date = ? ORDER BY id`,
		runDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Opportunity
	for rows.Next() {
		var o Opportunity
		var ids string
		if err := rows.Scan(&o.ID, &o.AppID, &o.RunDate, &o.Title, &o.Description, &o.ReviewCount, &ids); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ids), &o.ComplaintIDs); err != nil {
			return nil, fmt.Errorf("unmarshal complaint_ids: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// --- PM companies / jobs / outcomes ---

func UpsertPMCompanies(db *sql.DB, companies []PMCompany) error {
	if len(companies) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO pm_companies (id, name, job_count, last_scraped)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   job_count = excluded.job_count,
		   last_scraped = excluded.last_scraped`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range companies {
		if _, err := stmt.Exec(c.ID, c.Name, c.JobCount, c.LastScraped); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func UpsertPMJobs(db *sql.DB, jobs []PMJob) error {
	if len(jobs) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO pm_jobs (id, company_id, company_name, title, location, level, description, url, posted_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   company_id = excluded.company_id,
		   company_name = excluded.company_name,
		   title = excluded.title,
		   location = excluded.location,
		   level = excluded.level,
		   description = excluded.description,
		   url = excluded.url,
		   posted_date = excluded.posted_date`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, j := range jobs {
		if _, err := stmt.Exec(
			j.ID, j.CompanyID, j.CompanyName, j.Title, j.Location, j.Level,
			j.Description, j.URL, j.PostedDate,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func GetCompaniesScrapedOn(db *sql.DB, scrapeDate string) ([]PMCompany, error) {
	rows, err := db.Query(
		`SELECT id, name, job_count, last_scraped FROM pm_companies WHERE last_scraped = ? ORDER BY id`,
		scrapeDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PMCompany
	for rows.Next() {
		var c PMCompany
		if err := rows.Scan(&c.ID, &c.Name, &c.JobCount, &c.LastScraped); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func GetJobsForCompany(db *sql.DB, companyID string, limit int) ([]PMJob, error) {
	rows, err := db.Query(
		`SELECT id, company_id, company_name, title, location, level, description, url, posted_date
		 FROM pm_jobs
		 WHERE company_id = ? AND description <> ''
		 ORDER BY posted_date DESC
		 LIMIT ?`,
		companyID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PMJob
	for rows.Next() {
		var j PMJob
		if err := rows.Scan(&j.ID, &j.CompanyID, &j.CompanyName, &j.Title, &j.Location, &j.Level, &j.Description, &j.URL, &j.PostedDate); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// DeleteOutcomesByDate clears a date's outcomes ahead of regeneration so
// re-runs overwrite instead of accumulating.
func DeleteOutcomesByDate(db *sql.DB, scrapedDate string) error {
	_, err := db.Exec(`DELETE FROM pm_outcomes WHERE scraped_date = ?`, scrapedDate)
	return err
}

func InsertPMOutcomes(db *sql.DB, outcomes []PMOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO pm_outcomes (company_id, company_name, scraped_date, title, description, job_count, job_ids)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range outcomes {
		ids, err := json.Marshal(o.JobIDs)
		if err != nil {
			return fmt.Errorf("marshal job_ids: %w", err)
		}
		if _, err := stmt.Exec(o.CompanyID, o.CompanyName, o.ScrapedDate, o.Title, o.Description, o.JobCount, string(ids)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func GetOutcomesByDate(db *sql.DB, scrapedDate string) ([]PMOutcome, error) {
	rows, err := db.Query(
		`SELECT id, company_id, company_name, scraped_date, title, description, job_count, job_ids
		 FROM pm_outcomes WHERE scraped_date = ? ORDER BY id`,
		scrapedDate,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PMOutcome
	for rows.Next() {
		var o PMOutcome
		var ids string
		if err := rows.Scan(&o.ID, &o.CompanyID, &o.CompanyName, &o.ScrapedDate, &o.Title, &o.Description, &o.JobCount, &ids); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ids), &o.JobIDs); err != nil {
			return nil, fmt.Errorf("unmarshal job_ids: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
