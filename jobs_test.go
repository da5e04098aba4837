package main

import "testing"

func TestStripHTML(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"<p>Own the roadmap.</p><p>Ship weekly.</p>", "Own the roadmap. Ship weekly."},
		{"<ul><li>Define metrics</li><li>Run experiments</li></ul>", "Define metrics Run experiments"},
		{"plain text already", "plain text already"},
		{"<div>spaced   <b>out</b>\n\ntext</div>", "spaced out text"},
	}
	for _, c := range cases {
		if got := stripHTML(c.in); got != c.want {
			t.Errorf("stripHTML(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// Companies must carry the caller's scrape date, since the outcomes step
// looks them up by that exact key.
func TestCompaniesFromJobs(t *testing.T) {
	var jobs []museJob
	for _, c := range []struct{ short, name string }{
		{"acme", "Acme"},
		{"globex", "Globex"},
		{"acme", "Acme"},
		{"acme", "Acme"},
	} {
		var j museJob
		j.Company.ShortName = c.short
		j.Company.Name = c.name
		jobs = append(jobs, j)
	}

	companies := companiesFromJobs(jobs, "2026-08-29")
	if len(companies) != 2 {
		t.Fatalf("got %d companies, want 2", len(companies))
	}
	if companies[0].ID != "acme" || companies[0].JobCount != 3 {
		t.Fatalf("first company: %+v", companies[0])
	}
	if companies[1].ID != "globex" || companies[1].JobCount != 1 {
		t.Fatalf("second company: %+v", companies[1])
	}
	for _, c := range companies {
		if c.LastScraped != "2026-08-29" {
			t.Errorf("company %s scraped %q, want 2026-08-29", c.ID, c.LastScraped)
		}
	}
}

func TestIsSoftwareCompany(t *testing.T) {
	cases := []struct {
		title, company, desc string
		want                 bool
	}{
		{"Associate Product Manager", "Acme SaaS", "", true},
		{"APM", "Acme", "You will own our mobile checkout experience", true},
		{"Associate Manager", "Midwest Grain Co", "Oversee warehouse staffing and inventory", false},
		{"Product Manager", "HealthTech Labs", "", true},
		// "ai" only counts as a standalone word, not inside "grain" or
		// "maintain".
		{"Associate Manager", "Acme AI", "Build our ai assistant", true},
		{"Associate Manager", "Maintain Co", "Oversee building repairs", false},
	}
	for _, c := range cases {
		if got := isSoftwareCompany(c.title, c.company, c.desc); got != c.want {
			t.Errorf("isSoftwareCompany(%q, %q, %q) = %v, want %v", c.title, c.company, c.desc, got, c.want)
		}
	}
}
