package main

import (
	"time"
	"unicode/utf8"
)

// Complaint categories recognized by the extraction prompt. Stored and
// aggregated verbatim; no normalization happens anywhere downstream.
var complaintCategories = []string{
	"Bugs/Crashes",
	"Performance",
	"UI/UX",
	"Pricing/Subscriptions",
	"Missing Features",
	"Customer Support",
	"Privacy/Security",
	"Content Quality",
}

const (
	minSeverity = 1
	maxSeverity = 5
)

type App struct {
	AppID       string
	Name        string
	Developer   string
	AppCategory string
	IconURL     string
	CurrentRank int
	AvgRating   float64
	LastScraped time.Time
}

type Review struct {
	ID         int64
	AppID      string
	ITunesID   string // review id from the iTunes feed, unique per app
	Rating     int
	Title      string
	Body       string
	Author     string
	ReviewDate time.Time
	ScrapedAt  time.Time
}

// ReviewRow is the analysis view of a review: the review itself plus the
// denormalized app category carried through to the persisted complaint.
type ReviewRow struct {
	ID          int64
	AppID       string
	AppCategory string
	Rating      int
	Title       string
	Body        string
}

type Complaint struct {
	ID          int64
	ReviewID    int64
	AppID       string
	AppCategory string
	Category    string
	Text        string
	Severity    int
	RunDate     string
}

// ComplaintRow is the aggregation view: a complaint joined with its app name.
type ComplaintRow struct {
	AppID       string
	AppName     string
	AppCategory string
	Category    string
	Text        string
	Severity    int
}

type TopComplaint struct {
	Text     string `json:"text"`
	Category string `json:"category"`
	Count    int    `json:"count"`
	App      string `json:"app"`
}

type DailySummary struct {
	RunDate             string
	AppsScraped         int
	ReviewsProcessed    int
	ComplaintsFound     int
	ByComplaintCategory map[string]int
	ByAppCategory       map[string]map[string]int
	TopComplaints       []TopComplaint
	Status              string // "running", "complete", or "failed"
	Error               string
	CompletedAt         time.Time
}

type PMCompany struct {
	ID          string
	Name        string
	JobCount    int
	LastScraped string
}

type PMJob struct {
	ID          string
	CompanyID   string
	CompanyName string
	Title       string
	Location    string
	Level       string
	Description string
	URL         string
	PostedDate  string
}

type PMOutcome struct {
	ID          int64
	CompanyID   string
	CompanyName string
	ScrapedDate string
	Title       string
	Description string
	JobCount    int
	JobIDs      []string
}

type Opportunity struct {
	ID           int64
	AppID        string
	RunDate      string
	Title        string
	Description  string
	ReviewCount  int
	ComplaintIDs []int64
}

// runDateFor formats the calendar date that scopes a run.
func runDateFor(now time.Time) string {
	return now.Format("2006-01-02")
}

// startOfDay returns midnight of now's calendar day, in now's location.
func startOfDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// truncateText caps s at max bytes without splitting a UTF-8 sequence.
func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func clampSeverity(s int) int {
	if s < minSeverity {
		return minSeverity
	}
	if s > maxSeverity {
		return maxSeverity
	}
	return s
}
