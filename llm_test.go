package main

import (
	"strings"
	"testing"
)

// Every category the rest of the system recognizes must be offered to the
// model verbatim, since stored categories are never normalized.
func TestExtractPromptListsAllCategories(t *testing.T) {
	for _, cat := range complaintCategories {
		if !strings.Contains(extractSystemPrompt, `"`+cat+`"`) {
			t.Errorf("extraction prompt missing category %q", cat)
		}
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"[1,2]", "[1,2]"},
		{"```json\n[1,2]\n```", "[1,2]"},
		{"```\n[1,2]\n```", "[1,2]"},
		{"  \n```json\n{\"a\":1}\n```\n  ", "{\"a\":1}"},
	}
	for _, c := range cases {
		if got := stripCodeFences(c.in); got != c.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseComplaintResponseBareArray(t *testing.T) {
	resp := `[
		{"review_index": 0, "complaint_text": "Crashes on launch", "complaint_category": "Bugs/Crashes", "severity": 5},
		{"review_index": 2, "complaint_text": "Too expensive", "complaint_category": "Pricing/Subscriptions", "severity": 2}
	]`
	items, err := parseComplaintResponse(resp)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].ReviewIndex != 0 || items[0].Category != "Bugs/Crashes" || items[0].Severity != 5 {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].Text != "Too expensive" {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
}

func TestParseComplaintResponseWrapperObject(t *testing.T) {
	resp := `{"complaints": [{"review_index": 1, "complaint_text": "Laggy", "complaint_category": "Performance", "severity": 3}]}`
	items, err := parseComplaintResponse(resp)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(items) != 1 || items[0].Category != "Performance" {
		t.Fatalf("unexpected items: %+v", items)
	}

	// Alternate wrapper keys are tried in order.
	resp = `{"results": [{"review_index": 0, "complaint_text": "x", "complaint_category": "UI/UX", "severity": 1}]}`
	items, err = parseComplaintResponse(resp)
	if err != nil || len(items) != 1 {
		t.Fatalf("results wrapper: items=%v err=%v", items, err)
	}

	// Unknown wrapper key yields an empty result, not an error.
	resp = `{"stuff": []}`
	items, err = parseComplaintResponse(resp)
	if err != nil {
		t.Fatalf("unknown wrapper: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("unknown wrapper: got %d items, want 0", len(items))
	}
}

func TestParseComplaintResponseDropsMalformedItems(t *testing.T) {
	resp := `[
		{"review_index": 0, "complaint_text": "Valid", "complaint_category": "Bugs/Crashes", "severity": 4},
		{"review_index": 1, "complaint_text": "Missing severity", "complaint_category": "Performance"},
		{"review_index": "not a number", "complaint_text": "Bad type", "complaint_category": "UI/UX", "severity": 2},
		"just a string"
	]`
	items, err := parseComplaintResponse(resp)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Text != "Valid" {
		t.Fatalf("surviving item: %+v", items[0])
	}
}

func TestParseComplaintResponseNotJSON(t *testing.T) {
	if _, err := parseComplaintResponse("Sorry, I cannot help with that."); err == nil {
		t.Fatal("expected error for non-JSON response")
	}
}

func TestParseClusterResponse(t *testing.T) {
	resp := "```json\n" + `[
		{"title": "Fix Stability", "description": "Crashes dominate.", "complaint_indices": [0, 2, 5]},
		{"title": "No indices here", "description": "dropped"},
		{"title": "Simplify Pricing", "complaint_indices": [1]}
	]` + "\n```"
	items, err := parseClusterResponse(resp, "complaint_indices", []string{"opportunities", "results", "items"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d clusters, want 2", len(items))
	}
	if items[0].Title != "Fix Stability" || len(items[0].Indices) != 3 {
		t.Fatalf("first cluster: %+v", items[0])
	}
	if items[1].Description != "" {
		t.Fatalf("second cluster should have empty description: %+v", items[1])
	}
}

func TestTruncateForLog(t *testing.T) {
	if got := truncateForLog("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	long := truncateForLog("0123456789abcdef", 10)
	if len(long) <= 10 {
		t.Fatalf("expected truncation marker, got %q", long)
	}
}
