package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const landingPage = `<html>
<head>
<title>Acme Freight | Logistics made simple</title>
<meta name="description" content="Acme Freight moves cargo across the country.">
<meta property="og:site_name" content="Acme Freight">
</head>
<body>
<h1>Freight without friction</h1>
<section class="services">
  <ul>
    <li>Full truckload</li>
    <li>Last-mile delivery</li>
    <li>Warehouse automation</li>
  </ul>
</section>
<p>We build a cloud logistics data platform with machine learning routing.</p>
<a href="mailto:hello@acme.test">Email us</a>
<a href="tel:+15550100">Call</a>
<a href="https://linkedin.com/company/acme">LinkedIn</a>
<a href="https://twitter.com/acme">Twitter</a>
</body></html>`

func fixtureServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScrapeExtractsCompanyRecord(t *testing.T) {
	srv := fixtureServer(t, map[string]string{
		"/":     landingPage,
		"/team": "<html><body>team</body></html>",
	})

	info, err := NewClient().Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}

	if info.Name != "Acme Freight" {
		t.Errorf("Name = %q", info.Name)
	}
	if info.Title != "Acme Freight | Logistics made simple" {
		t.Errorf("Title = %q", info.Title)
	}
	if info.Description != "Acme Freight moves cargo across the country." {
		t.Errorf("Description = %q", info.Description)
	}
	if info.Tagline != "Freight without friction" {
		t.Errorf("Tagline = %q", info.Tagline)
	}
	if len(info.Services) != 3 || info.Services[0] != "Full truckload" {
		t.Errorf("Services = %v", info.Services)
	}
	if info.Contact["email"] != "hello@acme.test" {
		t.Errorf("Contact = %v", info.Contact)
	}
	if len(info.SocialLinks) != 2 {
		t.Errorf("SocialLinks = %v", info.SocialLinks)
	}
	if !contains(info.Industries, "logistics") {
		t.Errorf("Industries = %v", info.Industries)
	}
	if !contains(info.TechSignals, "machine learning") {
		t.Errorf("TechSignals = %v", info.TechSignals)
	}
	if !info.HasTeamPage {
		t.Error("HasTeamPage = false, want true")
	}
	if info.HasCareers {
		t.Error("HasCareers = true, want false")
	}
}

func TestScrapeNameFallsBackToTitleSegment(t *testing.T) {
	srv := fixtureServer(t, map[string]string{
		"/": `<html><head><title>Initech - TPS Reports</title></head><body></body></html>`,
	})

	info, err := NewClient().Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "Initech" {
		t.Errorf("Name = %q, want Initech", info.Name)
	}
}

func TestScrapeRejectsBadURLs(t *testing.T) {
	for _, raw := range []string{"", "   ", "https://"} {
		if _, err := NewClient().Scrape(context.Background(), raw); err == nil {
			t.Errorf("Scrape(%q) succeeded, want error", raw)
		}
	}
}

func TestScrapeAddsSchemeWhenMissing(t *testing.T) {
	u, err := normalizeURL("acme.test/path")
	if err != nil {
		t.Fatal(err)
	}
	if u.Scheme != "https" || u.Hostname() != "acme.test" {
		t.Errorf("normalizeURL() = %v", u)
	}
}

func TestPromptContextRendersKeyFields(t *testing.T) {
	info := &CompanyInfo{
		URL:         "https://acme.test",
		Name:        "Acme",
		Description: "Acme moves cargo.",
		Services:    []string{"Trucking"},
		Contact:     map[string]string{"email": "hi@acme.test"},
	}
	got := info.PromptContext()
	for _, want := range []string{"Company name: Acme", "Acme moves cargo.", "Trucking", "hi@acme.test"} {
		if !strings.Contains(got, want) {
			t.Errorf("PromptContext() missing %q:\n%s", want, got)
		}
	}
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
