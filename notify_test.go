package main

import (
	"strings"
	"testing"
)

func TestFormatRunSummary(t *testing.T) {
	s := DailySummary{
		RunDate:          "2026-08-29",
		AppsScraped:      100,
		ReviewsProcessed: 812,
		ComplaintsFound:  243,
		ByComplaintCategory: map[string]int{
			"Bugs/Crashes":          90,
			"Performance":           60,
			"Pricing/Subscriptions": 50,
			"UI/UX":                 43,
		},
		TopComplaints: []TopComplaint{
			{Text: "app crashes on launch", Category: "Bugs/Crashes", Count: 12, App: "App One"},
		},
	}

	msg := FormatRunSummary(s)

	for _, want := range []string{
		"2026-08-29",
		"apps: 100",
		"reviews: 812",
		"complaints: 243",
		"Bugs/Crashes (90)",
		"app crashes on launch",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("summary missing %q:\n%s", want, msg)
		}
	}

	// Only the top three categories appear.
	if strings.Contains(msg, "UI/UX (43)") {
		t.Errorf("fourth category should be cut:\n%s", msg)
	}
}

func TestFormatRunSummaryEmptyRun(t *testing.T) {
	s := DailySummary{RunDate: "2026-08-29"}
	msg := FormatRunSummary(s)
	if !strings.Contains(msg, "complaints: 0") {
		t.Errorf("empty run summary:\n%s", msg)
	}
	if strings.Contains(msg, "Most frequent") {
		t.Errorf("no top complaint expected:\n%s", msg)
	}
}
