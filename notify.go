package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/slack-go/slack"
)

// FormatRunSummary renders a completed run's summary for the report
// channel.
func FormatRunSummary(s DailySummary) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Complaint agent %s — apps: %d, reviews: %d, complaints: %d\n",
		s.RunDate, s.AppsScraped, s.ReviewsProcessed, s.ComplaintsFound))

	if len(s.ByComplaintCategory) > 0 {
		type catCount struct {
			cat   string
			count int
		}
		cats := make([]catCount, 0, len(s.ByComplaintCategory))
		for cat, count := range s.ByComplaintCategory {
			cats = append(cats, catCount{cat, count})
		}
		sort.Slice(cats, func(i, j int) bool {
			if cats[i].count != cats[j].count {
				return cats[i].count > cats[j].count
			}
			return cats[i].cat < cats[j].cat
		})
		sb.WriteString("Top categories:")
		for i, c := range cats {
			if i >= 3 {
				break
			}
			sb.WriteString(fmt.Sprintf(" %s (%d)", c.cat, c.count))
		}
		sb.WriteString("\n")
	}

	if len(s.TopComplaints) > 0 {
		top := s.TopComplaints[0]
		sb.WriteString(fmt.Sprintf("Most frequent: %q — %s, %d× (%s)", top.Text, top.Category, top.Count, top.App))
	}
	return sb.String()
}

// PostRunSummary posts the run summary to the configured Slack channel.
func PostRunSummary(api *slack.Client, channelID string, s DailySummary) error {
	_, _, err := api.PostMessage(channelID, slack.MsgOptionText(FormatRunSummary(s), false))
	return err
}
