// Package search implements the search-engine surface leaves (google-search,
// bing-search) from spec §4.2: submit a search URL, scrape organic results
// and, for Google, any AI-overview panel.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aivisrun/study-core/pkg/surfaces"
)

// Result is one scraped organic search result.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Profile describes how to build a search URL and which CSS selectors carry
// organic results (and, for engines that have one, an AI-overview panel).
type Profile struct {
	SearchURLTemplate string // contains "%s" for the url-encoded query
	ResultSelector    string
	TitleSelector     string
	LinkSelector      string
	SnippetSelector   string
	AIOverviewSelector string // optional; "" if the engine has none
}

// Leaf is the shared search-engine leaf.
type Leaf struct {
	SurfaceID  string
	Profile    Profile
	HTTPClient *http.Client
}

// NewLeaf builds a search-engine leaf.
func NewLeaf(surfaceID string, profile Profile) *Leaf {
	return &Leaf{SurfaceID: surfaceID, Profile: profile, HTTPClient: &http.Client{Timeout: 30 * time.Second}}
}

// ExecuteQuery implements surfaces.Capability.
func (l *Leaf) ExecuteQuery(ctx context.Context, req surfaces.Request) (surfaces.Response, error) {
	start := time.Now()

	searchURL := fmt.Sprintf(l.Profile.SearchURLTemplate, url.QueryEscape(req.QueryText))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return surfaces.Response{}, fmt.Errorf("%s: build request: %w", l.SurfaceID, err)
	}
	httpReq.Header.Set("User-Agent", "Mozilla/5.0 (compatible; study-core/1.0)")

	resp, err := l.HTTPClient.Do(httpReq)
	if err != nil {
		return surfaces.Response{}, fmt.Errorf("%s: request failed: %w", l.SurfaceID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return surfaces.Response{}, fmt.Errorf("%s returned %d", l.SurfaceID, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return surfaces.Response{}, fmt.Errorf("%s: parse html: %w", l.SurfaceID, err)
	}

	var results []Result
	doc.Find(l.Profile.ResultSelector).Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find(l.Profile.TitleSelector).First().Text())
		href, _ := sel.Find(l.Profile.LinkSelector).First().Attr("href")
		snippet := strings.TrimSpace(sel.Find(l.Profile.SnippetSelector).First().Text())
		if title == "" && href == "" {
			return
		}
		results = append(results, Result{Title: title, URL: href, Snippet: snippet})
	})

	var overview string
	if l.Profile.AIOverviewSelector != "" {
		overview = strings.TrimSpace(doc.Find(l.Profile.AIOverviewSelector).First().Text())
	}

	structured := map[string]interface{}{"organicResults": results}
	responseText := overview
	if responseText == "" && len(results) > 0 {
		responseText = results[0].Snippet
	}
	if overview != "" {
		structured["aiOverview"] = overview
	}

	totalMs := time.Since(start).Milliseconds()
	return surfaces.Response{
		Success:      true,
		ResponseText: responseText,
		Structured:   structured,
		Timing:       surfaces.Timing{TotalMs: totalMs, ResponseMs: totalMs},
	}, nil
}

// ExecuteHealthCheck runs a trivial search.
func (l *Leaf) ExecuteHealthCheck(ctx context.Context) (surfaces.Response, error) {
	return l.ExecuteQuery(ctx, surfaces.Request{QueryText: "ok"})
}

// GoogleSearchProfile describes Google's organic results and AI-overview panel.
func GoogleSearchProfile() Profile {
	return Profile{
		SearchURLTemplate:  "https://www.google.com/search?q=%s",
		ResultSelector:     "div.g",
		TitleSelector:      "h3",
		LinkSelector:       "a",
		SnippetSelector:    "div[data-sncf], span.aCOpRe",
		AIOverviewSelector: "div[data-attrid='SGE'], div.AI-overview",
	}
}

// BingSearchProfile describes Bing's organic results.
func BingSearchProfile() Profile {
	return Profile{
		SearchURLTemplate: "https://www.bing.com/search?q=%s",
		ResultSelector:    "li.b_algo",
		TitleSelector:     "h2",
		LinkSelector:      "a",
		SnippetSelector:   ".b_caption p",
	}
}
