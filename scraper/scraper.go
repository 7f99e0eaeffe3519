// Package scraper extracts a flat company profile from a website's landing
// page for use in research prompts.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// CompanyInfo is the flat record the research prompt consumes.
type CompanyInfo struct {
	URL         string            `json:"url"`
	Name        string            `json:"name"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Tagline     string            `json:"tagline"`
	About       string            `json:"about"`
	Services    []string          `json:"services"`
	Contact     map[string]string `json:"contact"`
	SocialLinks []string          `json:"social_links"`
	Industries  []string          `json:"industries"`
	TechSignals []string          `json:"tech_signals"`
	HasTeamPage bool              `json:"has_team_page"`
	HasCareers  bool              `json:"has_careers_page"`
	TextSample  string            `json:"text_sample"`
}

// Client fetches and parses company sites.
type Client struct {
	hc *http.Client
}

func NewClient() *Client {
	return &Client{hc: &http.Client{Timeout: 30 * time.Second}}
}

var industryKeywords = []string{
	"saas", "fintech", "healthcare", "logistics", "e-commerce", "ecommerce",
	"manufacturing", "consulting", "cybersecurity", "insurance", "real estate",
	"education", "legal", "marketing", "retail", "biotech", "analytics",
}

var techSignals = []string{
	"api", "machine learning", "artificial intelligence", "cloud",
	"kubernetes", "automation", "blockchain", "data platform", "devops",
}

// Scrape fetches the landing page at rawURL and extracts the company record.
func (c *Client) Scrape(ctx context.Context, rawURL string) (*CompanyInfo, error) {
	u, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	doc, err := c.fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}

	info := &CompanyInfo{
		URL:     u.String(),
		Contact: map[string]string{},
	}

	info.Title = strings.TrimSpace(doc.Find("title").First().Text())
	info.Description = metaContent(doc, "description")
	if info.Description == "" {
		info.Description = metaProperty(doc, "og:description")
	}
	info.Name = companyName(doc, info.Title, u.Hostname())
	info.Tagline = firstHeading(doc)
	info.About = aboutText(doc)
	info.Services = services(doc)
	contacts(doc, info.Contact)
	info.SocialLinks = socialLinks(doc)

	body := strings.ToLower(doc.Find("body").Text())
	info.Industries = matchKeywords(body, industryKeywords)
	info.TechSignals = matchKeywords(body, techSignals)
	info.TextSample = textSample(doc, 1500)

	info.HasTeamPage = c.pageExists(ctx, u, "/team") || c.pageExists(ctx, u, "/about")
	info.HasCareers = c.pageExists(ctx, u, "/careers") || c.pageExists(ctx, u, "/jobs")

	return info, nil
}

// PromptContext renders the record as the plain-text block embedded in the
// research prompt.
func (info *CompanyInfo) PromptContext() string {
	var b strings.Builder
	write := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	write("Website", info.URL)
	write("Company name", info.Name)
	write("Page title", info.Title)
	write("Description", info.Description)
	write("Tagline", info.Tagline)
	write("About", info.About)
	if len(info.Services) > 0 {
		write("Services", strings.Join(info.Services, "; "))
	}
	if len(info.Industries) > 0 {
		write("Industry signals", strings.Join(info.Industries, ", "))
	}
	if len(info.TechSignals) > 0 {
		write("Technology signals", strings.Join(info.TechSignals, ", "))
	}
	for kind, v := range info.Contact {
		write("Contact "+kind, v)
	}
	if len(info.SocialLinks) > 0 {
		write("Social", strings.Join(info.SocialLinks, ", "))
	}
	if info.TextSample != "" {
		fmt.Fprintf(&b, "Page text sample:\n%s\n", info.TextSample)
	}
	return b.String()
}

func normalizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty company URL")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid company URL %q: %w", raw, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("invalid company URL %q: no host", raw)
	}
	return u, nil
}

func (c *Client) fetch(ctx context.Context, u string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; pitchcast/1.0)")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", u, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", u, err)
	}
	return doc, nil
}

func (c *Client) pageExists(ctx context.Context, base *url.URL, path string) bool {
	probe := *base
	probe.Path = path
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, probe.String(), nil)
	if err != nil {
		return false
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func metaContent(doc *goquery.Document, name string) string {
	v, _ := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
	return strings.TrimSpace(v)
}

func metaProperty(doc *goquery.Document, prop string) string {
	v, _ := doc.Find(`meta[property="` + prop + `"]`).First().Attr("content")
	return strings.TrimSpace(v)
}

// companyName prefers og:site_name, then the segment of the title before a
// separator, then the bare domain.
func companyName(doc *goquery.Document, title, host string) string {
	if name := metaProperty(doc, "og:site_name"); name != "" {
		return name
	}
	for _, sep := range []string{" | ", " – ", " — ", " - "} {
		if i := strings.Index(title, sep); i > 0 {
			return strings.TrimSpace(title[:i])
		}
	}
	if title != "" {
		return title
	}
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	if host == "" {
		return ""
	}
	return strings.ToUpper(host[:1]) + host[1:]
}

func firstHeading(doc *goquery.Document) string {
	for _, sel := range []string{"h1", "h2"} {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			return collapse(t)
		}
	}
	return ""
}

func aboutText(doc *goquery.Document) string {
	var about string
	doc.Find(`[class*="about"], [id*="about"], section`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := collapse(s.Text())
		if len(t) > 80 {
			about = t
			return false
		}
		return true
	})
	if len(about) > 600 {
		about = about[:600]
	}
	return about
}

func services(doc *goquery.Document) []string {
	seen := map[string]bool{}
	var out []string
	doc.Find(`[class*="service"] li, [class*="solution"] li, [class*="product"] li, [id*="service"] li`).
		Each(func(_ int, s *goquery.Selection) {
			t := collapse(s.Text())
			if t == "" || len(t) > 120 || seen[t] {
				return
			}
			seen[t] = true
			out = append(out, t)
		})
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

func contacts(doc *goquery.Document, out map[string]string) {
	doc.Find(`a[href^="mailto:"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		out["email"] = strings.TrimPrefix(href, "mailto:")
		return false
	})
	doc.Find(`a[href^="tel:"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		out["phone"] = strings.TrimPrefix(href, "tel:")
		return false
	})
}

var socialHosts = []string{"linkedin.com", "twitter.com", "x.com", "facebook.com", "instagram.com", "youtube.com"}

func socialLinks(doc *goquery.Document) []string {
	seen := map[string]bool{}
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		for _, host := range socialHosts {
			if strings.Contains(href, host) && !seen[href] {
				seen[href] = true
				out = append(out, href)
			}
		}
	})
	sort.Strings(out)
	if len(out) > 6 {
		out = out[:6]
	}
	return out
}

func matchKeywords(body string, keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		if strings.Contains(body, kw) {
			out = append(out, kw)
		}
	}
	return out
}

func textSample(doc *goquery.Document, max int) string {
	doc.Find("script, style, noscript").Remove()
	t := collapse(doc.Find("body").Text())
	if len(t) > max {
		t = t[:max]
	}
	return t
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
