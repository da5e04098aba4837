package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const museBaseURL = "https://www.themuse.com/api/public/jobs"

// musePageDelay paces page requests to be polite to The Muse.
const musePageDelay = 400 * time.Millisecond

const maxJobDescriptionChars = 8000

// Levels that map to APM / entry-level roles.
var museTargetLevels = []string{"Entry Level", "Associate"}

// Keywords indicating a software/tech product role.
var techSignals = []string{
	"software", "saas", "platform", "cloud", "api", "app ", "apps ",
	"mobile", "digital", "tech", "data", " ai ", " ml ", "automation",
	"ecommerce", "fintech", "healthtech", "edtech", "startup", "product",
}

type museJob struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Contents        string `json:"contents"`
	PublicationDate string `json:"publication_date"`
	Company         struct {
		ID        int    `json:"id"`
		ShortName string `json:"short_name"`
		Name      string `json:"name"`
	} `json:"company"`
	Locations []struct {
		Name string `json:"name"`
	} `json:"locations"`
	Levels []struct {
		Name string `json:"name"`
	} `json:"levels"`
	Refs struct {
		LandingPage string `json:"landing_page"`
	} `json:"refs"`
}

type museResponse struct {
	Results   []museJob `json:"results"`
	PageCount int       `json:"page_count"`
}

func fetchMusePage(level string, page int) (museResponse, error) {
	u := fmt.Sprintf("%s?category=Product+Management&level=%s&page=%d&descending=true",
		museBaseURL, url.QueryEscape(level), page)
	var resp museResponse
	if err := getJSON(u, &resp); err != nil {
		return resp, fmt.Errorf("muse level=%q page=%d: %w", level, page, err)
	}
	return resp, nil
}

// stripHTML renders a job description's HTML to plain text with normalized
// whitespace.
func stripHTML(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	// Keep list items and paragraphs on their own lines before flattening.
	doc.Find("br, p, li").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	text := doc.Text()
	return strings.Join(strings.Fields(text), " ")
}

func isSoftwareCompany(title, companyName, description string) bool {
	haystack := strings.ToLower(title + " " + companyName + " " + description)
	for _, sig := range techSignals {
		if strings.Contains(haystack, sig) {
			return true
		}
	}
	return false
}

// companiesFromJobs folds jobs into per-company records stamped with the
// run's scrape date, preserving first-seen order.
func companiesFromJobs(jobs []museJob, scrapeDate string) []PMCompany {
	counts := make(map[string]*PMCompany)
	var order []string
	for _, j := range jobs {
		cid := j.Company.ShortName
		if counts[cid] == nil {
			counts[cid] = &PMCompany{ID: cid, Name: j.Company.Name, LastScraped: scrapeDate}
			order = append(order, cid)
		}
		counts[cid].JobCount++
	}
	companies := make([]PMCompany, 0, len(order))
	for _, cid := range order {
		companies = append(companies, *counts[cid])
	}
	return companies
}

// FetchPMJobs scrapes entry-level PM job listings, filters them to recent
// software-company postings, and upserts companies and jobs. Companies are
// stamped with scrapeDate so the outcomes step finds them under the same
// key. Returns the number of jobs stored.
func FetchPMJobs(cfg Config, db *sql.DB, scrapeDate string) (int, error) {
	var allJobs []museJob
	seen := make(map[int]bool)

	for _, level := range museTargetLevels {
		log.Printf("fetch_pm_jobs level=%q", level)
		for page := 0; page < cfg.MuseMaxPages; page++ {
			data, err := fetchMusePage(level, page)
			if err != nil {
				log.Printf("fetch_pm_jobs warn level=%q page=%d err=%v", level, page, err)
				break
			}
			fresh := 0
			for _, j := range data.Results {
				if seen[j.ID] {
					continue
				}
				seen[j.ID] = true
				allJobs = append(allJobs, j)
				fresh++
			}
			log.Printf("fetch_pm_jobs page=%d fresh=%d total=%d", page, fresh, len(allJobs))
			if page >= data.PageCount-1 {
				break
			}
			time.Sleep(musePageDelay)
		}
	}
	log.Printf("fetch_pm_jobs raw=%d", len(allJobs))

	// Keep software-company postings from the last 6 months.
	sixMonthsAgo := time.Now().AddDate(0, -6, 0)
	var filtered []museJob
	descriptions := make(map[int]string)
	for _, j := range allJobs {
		posted, err := time.Parse(time.RFC3339, j.PublicationDate)
		if err != nil || posted.Before(sixMonthsAgo) {
			continue
		}
		desc := stripHTML(j.Contents)
		if !isSoftwareCompany(j.Name, j.Company.Name, desc) {
			continue
		}
		descriptions[j.ID] = desc
		filtered = append(filtered, j)
	}
	log.Printf("fetch_pm_jobs filtered=%d", len(filtered))

	if len(filtered) == 0 {
		return 0, nil
	}

	companies := companiesFromJobs(filtered, scrapeDate)
	if err := UpsertPMCompanies(db, companies); err != nil {
		return 0, fmt.Errorf("upsert companies: %w", err)
	}
	log.Printf("fetch_pm_jobs companies=%d", len(companies))

	jobs := make([]PMJob, 0, len(filtered))
	for _, j := range filtered {
		desc := truncateText(descriptions[j.ID], maxJobDescriptionChars)
		job := PMJob{
			ID:          fmt.Sprintf("%d", j.ID),
			CompanyID:   j.Company.ShortName,
			CompanyName: j.Company.Name,
			Title:       j.Name,
			Description: desc,
			URL:         j.Refs.LandingPage,
			PostedDate:  strings.SplitN(j.PublicationDate, "T", 2)[0],
		}
		if len(j.Locations) > 0 {
			job.Location = j.Locations[0].Name
		}
		if len(j.Levels) > 0 {
			job.Level = j.Levels[0].Name
		}
		jobs = append(jobs, job)
	}
	if err := UpsertPMJobs(db, jobs); err != nil {
		return 0, fmt.Errorf("upsert jobs: %w", err)
	}
	log.Printf("fetch_pm_jobs stored=%d", len(jobs))

	return len(jobs), nil
}
