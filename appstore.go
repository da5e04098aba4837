package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// appWaveDelay is the pause between review-scrape waves, to be polite to
// the iTunes API.
const appWaveDelay = 500 * time.Millisecond

type topAppsFeed struct {
	Feed struct {
		Results []struct {
			ID         string `json:"id"`
			Name       string `json:"name"`
			ArtistName string `json:"artistName"`
			ArtworkURL string `json:"artworkUrl100"`
			Genres     []struct {
				Name string `json:"name"`
			} `json:"genres"`
		} `json:"results"`
	} `json:"feed"`
}

type reviewsFeed struct {
	Feed struct {
		Entry []struct {
			ID struct {
				Label string `json:"label"`
			} `json:"id"`
			Author struct {
				Name struct {
					Label string `json:"label"`
				} `json:"name"`
			} `json:"author"`
			Rating struct {
				Label string `json:"label"`
			} `json:"im:rating"`
			Title struct {
				Label string `json:"label"`
			} `json:"title"`
			Content struct {
				Label string `json:"label"`
			} `json:"content"`
			Updated struct {
				Label string `json:"label"`
			} `json:"updated"`
		} `json:"entry"`
	} `json:"feed"`
}

func getJSON(url string, out any) error {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "appintel/1.0 (complaint-intelligence-agent)")
	resp, err := externalHTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// FetchTopApps scrapes the top free iOS apps chart and upserts the app
// records, refreshing rank and metadata each run.
func FetchTopApps(cfg Config, db *sql.DB) ([]App, error) {
	url := fmt.Sprintf("https://rss.applemarketingtools.com/api/v2/%s/apps/top-free/%d/apps.json",
		cfg.Country, cfg.TopAppsCount)

	var feed topAppsFeed
	if err := getJSON(url, &feed); err != nil {
		return nil, fmt.Errorf("fetch top apps: %w", err)
	}
	log.Printf("fetch_apps found=%d", len(feed.Feed.Results))

	now := time.Now().UTC()
	apps := make([]App, 0, len(feed.Feed.Results))
	for i, r := range feed.Feed.Results {
		category := "Uncategorized"
		if len(r.Genres) > 0 {
			category = r.Genres[0].Name
		}
		apps = append(apps, App{
			AppID:       r.ID,
			Name:        r.Name,
			Developer:   r.ArtistName,
			AppCategory: category,
			IconURL:     r.ArtworkURL,
			CurrentRank: i + 1,
			LastScraped: now,
		})
	}

	if err := UpsertApps(db, apps); err != nil {
		return nil, fmt.Errorf("upsert apps: %w", err)
	}
	log.Printf("fetch_apps upserted=%d", len(apps))
	return apps, nil
}

// fetchReviewsForApp pulls the app's most recent reviews and keeps only the
// low-rating ones (potential complaints). Individual app failures are
// reported to the caller but never abort the whole scrape.
func fetchReviewsForApp(cfg Config, app App) ([]Review, error) {
	url := fmt.Sprintf("https://itunes.apple.com/%s/rss/customerreviews/page=1/id=%s/sortby=mostrecent/json",
		cfg.Country, app.AppID)

	var feed reviewsFeed
	if err := getJSON(url, &feed); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var reviews []Review
	for _, e := range feed.Feed.Entry {
		if len(reviews) >= cfg.ReviewsPerApp {
			break
		}
		rating, err := strconv.Atoi(e.Rating.Label)
		if err != nil {
			// Some feeds lead with a non-review app entry; skip it.
			continue
		}
		if rating > cfg.MaxComplaintRating {
			continue
		}
		var reviewDate time.Time
		if e.Updated.Label != "" {
			if t, err := time.Parse(time.RFC3339, e.Updated.Label); err == nil {
				reviewDate = t
			}
		}
		reviews = append(reviews, Review{
			AppID:      app.AppID,
			ITunesID:   e.ID.Label,
			Rating:     rating,
			Title:      e.Title.Label,
			Body:       e.Content.Label,
			Author:     e.Author.Name.Label,
			ReviewDate: reviewDate,
			ScrapedAt:  now,
		})
	}
	return reviews, nil
}

// FetchReviews scrapes low-rating reviews for all apps in bounded
// concurrent waves and inserts them, relying on UNIQUE(app_id, itunes_id)
// for dedup. Returns the number of newly inserted reviews.
func FetchReviews(cfg Config, db *sql.DB, apps []App) (int, error) {
	log.Printf("fetch_reviews apps=%d max_rating=%d concurrency=%d", len(apps), cfg.MaxComplaintRating, cfg.ScrapeConcurrency)

	totalInserted := 0
	for start := 0; start < len(apps); start += cfg.ScrapeConcurrency {
		end := start + cfg.ScrapeConcurrency
		if end > len(apps) {
			end = len(apps)
		}
		wave := apps[start:end]
		results := make([][]Review, len(wave))

		var g errgroup.Group
		g.SetLimit(cfg.ScrapeConcurrency)
		for i, app := range wave {
			i, app := i, app
			g.Go(func() error {
				reviews, err := fetchReviewsForApp(cfg, app)
				if err != nil {
					log.Printf("fetch_reviews warn app=%s err=%v", app.Name, err)
					return nil
				}
				results[i] = reviews
				return nil
			})
		}
		_ = g.Wait()

		var waveReviews []Review
		for _, r := range results {
			waveReviews = append(waveReviews, r...)
		}
		if len(waveReviews) > 0 {
			inserted, err := InsertReviews(db, waveReviews)
			if err != nil {
				log.Printf("fetch_reviews warn insert wave=%d err=%v", start/cfg.ScrapeConcurrency+1, err)
			} else {
				totalInserted += inserted
			}
		}

		log.Printf("fetch_reviews progress apps=%d/%d inserted=%d", end, len(apps), totalInserted)
		if end < len(apps) {
			time.Sleep(appWaveDelay)
		}
	}

	log.Printf("fetch_reviews done inserted=%d", totalInserted)
	return totalInserted, nil
}
