// Package ecommerce implements the e-commerce surface leaves (amazon-web,
// zappos-web, amazon-rufus). This category is a supplement beyond spec.md's
// named surfaces: manifest.SurfaceCategory already carries "e-commerce" as a
// first-class value, and a visibility study over AI-mediated shopping
// assistants and product search is a natural extension of the same
// capability contract (SPEC_FULL.md §3 Domain Stack).
package ecommerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aivisrun/study-core/pkg/surfaces"
	"github.com/aivisrun/study-core/pkg/surfaces/webchat"
)

// Product is one scraped product listing.
type Product struct {
	Title string
	URL   string
	Price string
}

// StorefrontProfile describes a retailer's search URL and listing selectors.
type StorefrontProfile struct {
	SearchURLTemplate string
	ListingSelector   string
	TitleSelector     string
	LinkSelector      string
	PriceSelector     string
}

// StorefrontLeaf scrapes a retailer's search-results page over plain HTTP,
// the same goquery-driven pattern the search surfaces use (spec §4.2's
// scraping pattern, generalized to product listings).
type StorefrontLeaf struct {
	SurfaceID  string
	Profile    StorefrontProfile
	HTTPClient *http.Client
}

// NewStorefrontLeaf builds a storefront leaf.
func NewStorefrontLeaf(surfaceID string, profile StorefrontProfile) *StorefrontLeaf {
	return &StorefrontLeaf{SurfaceID: surfaceID, Profile: profile, HTTPClient: &http.Client{Timeout: 30 * time.Second}}
}

// ExecuteQuery implements surfaces.Capability.
func (l *StorefrontLeaf) ExecuteQuery(ctx context.Context, req surfaces.Request) (surfaces.Response, error) {
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

	var products []Product
	doc.Find(l.Profile.ListingSelector).Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find(l.Profile.TitleSelector).First().Text())
		href, _ := sel.Find(l.Profile.LinkSelector).First().Attr("href")
		price := strings.TrimSpace(sel.Find(l.Profile.PriceSelector).First().Text())
		if title == "" {
			return
		}
		products = append(products, Product{Title: title, URL: href, Price: price})
	})

	var responseText string
	if len(products) > 0 {
		responseText = fmt.Sprintf("%s — %s", products[0].Title, products[0].Price)
	}

	totalMs := time.Since(start).Milliseconds()
	return surfaces.Response{
		Success:      true,
		ResponseText: responseText,
		Structured:   map[string]interface{}{"products": products},
		Timing:       surfaces.Timing{TotalMs: totalMs, ResponseMs: totalMs},
	}, nil
}

// ExecuteHealthCheck runs a trivial product search.
func (l *StorefrontLeaf) ExecuteHealthCheck(ctx context.Context) (surfaces.Response, error) {
	return l.ExecuteQuery(ctx, surfaces.Request{QueryText: "batteries"})
}

// AmazonWebProfile describes amazon.com's search-results listing.
func AmazonWebProfile() StorefrontProfile {
	return StorefrontProfile{
		SearchURLTemplate: "https://www.amazon.com/s?k=%s",
		ListingSelector:   "div[data-component-type='s-search-result']",
		TitleSelector:     "h2 span",
		LinkSelector:      "h2 a",
		PriceSelector:     ".a-price .a-offscreen",
	}
}

// ZapposWebProfile describes zappos.com's search-results listing.
func ZapposWebProfile() StorefrontProfile {
	return StorefrontProfile{
		SearchURLTemplate: "https://www.zappos.com/search?term=%s",
		ListingSelector:   "article.productCard",
		TitleSelector:     ".productName",
		LinkSelector:      "a",
		PriceSelector:     ".productPrice",
	}
}

// AmazonRufusProfile describes Amazon's Rufus shopping assistant, which is a
// conversational overlay rather than a search-results page: it is driven
// through the same browser-automation contract as the web-chatbot surfaces
// (webchat.BrowserProvider/Page), not goquery scraping.
func AmazonRufusProfile() webchat.SiteProfile {
	return webchat.SiteProfile{
		URL:              "https://www.amazon.com/",
		InputSelectors:   []string{"#rufus-chat-input textarea"},
		SubmitSelectors:  []string{"button[aria-label='Send to Rufus']"},
		ResponseSelector: "[data-testid='rufus-message']:last-of-type",
		SettleWindow:     3 * time.Second,
	}
}

// NewAmazonRufusLeaf builds the amazon-rufus leaf atop the shared web-chatbot
// execution pattern.
func NewAmazonRufusLeaf(provider webchat.BrowserProvider, session webchat.Session) *webchat.Leaf {
	return webchat.NewLeaf("amazon-rufus", provider, session, AmazonRufusProfile())
}
