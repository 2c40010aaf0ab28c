// Package webchat implements the web-chatbot surface leaves (chatgpt-web,
// perplexity-web, meta-ai-web, copilot-web, x-grok-web) from spec §4.2. Each
// leaf is driven through a BrowserProvider abstraction rather than a
// concrete browser-automation library: the choice of library is an explicit
// Non-goal of this core (spec §1), and session capture is a collaborator
// concern (spec §1, §6). BrowserProvider is the "explicitly-owned" value
// called for by the design note in spec §9, replacing process-wide
// browser/chromium singletons.
package webchat

import (
	"context"
	"fmt"
	"time"

	"github.com/aivisrun/study-core/pkg/surfaces"
)

// Session is a captured browser session (cookies, storage, user-agent) that
// a collaborator supplies out of band (spec §1: "session capture... out of
// scope"). The core only consumes it.
type Session struct {
	Cookies   []byte
	Storage   []byte
	UserAgent string
}

// Page is the minimal page-automation surface a BrowserProvider exposes. A
// real implementation wraps a specific browser-automation library; this core
// only depends on this interface.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Locate returns the index of the first selector (from an ordered list)
	// that is visible on the page, or -1 if none are.
	Locate(ctx context.Context, selectors []string) (int, error)
	Fill(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	// WaitForSettled blocks until no new streamed tokens have appeared for
	// settleWindow (spec §4.2: "wait for the response to stabilize").
	WaitForSettled(ctx context.Context, responseSelector string, settleWindow time.Duration) error
	ScrapeText(ctx context.Context, selector string) (string, error)
	Close() error
}

// BrowserProvider creates a Page pre-loaded with a captured session. Each web
// adapter owns its own BrowserProvider instance; there is no cross-adapter
// page sharing (spec §5: "Browser sessions are treated as non-shareable
// resources").
type BrowserProvider interface {
	NewPage(ctx context.Context, session Session) (Page, error)
}

// SiteProfile describes one chatbot site's locators and settling behavior.
type SiteProfile struct {
	URL                 string
	InputSelectors      []string
	SubmitSelectors     []string
	ResponseSelector    string
	NewConversationSelector string
	SettleWindow        time.Duration
}

// Leaf is the shared web-chatbot leaf: it implements surfaces.Capability by
// driving a BrowserProvider-supplied Page through a SiteProfile's locators.
type Leaf struct {
	SurfaceID string
	Provider  BrowserProvider
	Session   Session
	Profile   SiteProfile
}

// NewLeaf builds a web-chatbot leaf for one surface.
func NewLeaf(surfaceID string, provider BrowserProvider, session Session, profile SiteProfile) *Leaf {
	if profile.SettleWindow == 0 {
		profile.SettleWindow = 2 * time.Second
	}
	return &Leaf{SurfaceID: surfaceID, Provider: provider, Session: session, Profile: profile}
}

// ExecuteQuery implements surfaces.Capability following the execution
// pattern in spec §4.2: acquire a pre-loaded browser context, navigate,
// locate the input box trying selectors in order, fill and submit, wait for
// the response to settle, scrape the text.
func (l *Leaf) ExecuteQuery(ctx context.Context, req surfaces.Request) (surfaces.Response, error) {
	start := time.Now()

	page, err := l.Provider.NewPage(ctx, l.Session)
	if err != nil {
		return surfaces.Response{}, fmt.Errorf("%s: acquire browser page: %w", l.SurfaceID, err)
	}
	defer func() { _ = page.Close() }()

	if err := page.Navigate(ctx, l.Profile.URL); err != nil {
		return surfaces.Response{}, fmt.Errorf("%s: navigate: %w", l.SurfaceID, err)
	}

	inputIdx, err := page.Locate(ctx, l.Profile.InputSelectors)
	if err != nil {
		return surfaces.Response{}, fmt.Errorf("%s: locate input: %w", l.SurfaceID, err)
	}
	if inputIdx < 0 {
		return surfaces.Response{}, fmt.Errorf("%s: no visible input selector among %v", l.SurfaceID, l.Profile.InputSelectors)
	}

	if err := page.Fill(ctx, l.Profile.InputSelectors[inputIdx], req.QueryText); err != nil {
		return surfaces.Response{}, fmt.Errorf("%s: fill input: %w", l.SurfaceID, err)
	}

	submitIdx, err := page.Locate(ctx, l.Profile.SubmitSelectors)
	if err != nil {
		return surfaces.Response{}, fmt.Errorf("%s: locate submit: %w", l.SurfaceID, err)
	}
	if submitIdx < 0 {
		return surfaces.Response{}, fmt.Errorf("%s: no visible submit selector among %v", l.SurfaceID, l.Profile.SubmitSelectors)
	}
	if err := page.Click(ctx, l.Profile.SubmitSelectors[submitIdx]); err != nil {
		return surfaces.Response{}, fmt.Errorf("%s: click submit: %w", l.SurfaceID, err)
	}

	if err := page.WaitForSettled(ctx, l.Profile.ResponseSelector, l.Profile.SettleWindow); err != nil {
		return surfaces.Response{}, fmt.Errorf("%s: wait for response: %w", l.SurfaceID, err)
	}

	text, err := page.ScrapeText(ctx, l.Profile.ResponseSelector)
	if err != nil {
		return surfaces.Response{}, fmt.Errorf("%s: scrape response: %w", l.SurfaceID, err)
	}

	totalMs := time.Since(start).Milliseconds()
	return surfaces.Response{
		Success:      true,
		ResponseText: text,
		Timing:       surfaces.Timing{TotalMs: totalMs, ResponseMs: totalMs},
	}, nil
}

// ExecuteHealthCheck runs a trivial query through the same browser pipeline.
func (l *Leaf) ExecuteHealthCheck(ctx context.Context) (surfaces.Response, error) {
	return l.ExecuteQuery(ctx, surfaces.Request{QueryText: "Say OK.", MaxTokens: 5})
}

// Profiles for the named web-chatbot surfaces (spec §6's stable surface ids).
// Real selector values are placeholders a deployment is expected to keep
// current against each site's markup; they are not protocol-critical here.

func ChatGPTWebProfile() SiteProfile {
	return SiteProfile{
		URL:              "https://chat.openai.com/",
		InputSelectors:   []string{"#prompt-textarea", "textarea[data-id='root']"},
		SubmitSelectors:  []string{"button[data-testid='send-button']"},
		ResponseSelector: "[data-message-author-role='assistant']:last-of-type",
		SettleWindow:     2 * time.Second,
	}
}

func PerplexityWebProfile() SiteProfile {
	return SiteProfile{
		URL:              "https://www.perplexity.ai/",
		InputSelectors:   []string{"textarea[placeholder]"},
		SubmitSelectors:  []string{"button[aria-label='Submit']"},
		ResponseSelector: ".prose:last-of-type",
		SettleWindow:     3 * time.Second,
	}
}

func MetaAIWebProfile() SiteProfile {
	return SiteProfile{
		URL:              "https://www.meta.ai/",
		InputSelectors:   []string{"div[contenteditable='true']"},
		SubmitSelectors:  []string{"button[aria-label='Send']"},
		ResponseSelector: "[data-testid='chat-message']:last-of-type",
		SettleWindow:     2 * time.Second,
	}
}

func CopilotWebProfile() SiteProfile {
	return SiteProfile{
		URL:              "https://copilot.microsoft.com/",
		InputSelectors:   []string{"#searchbox", "textarea#userInput"},
		SubmitSelectors:  []string{"button[title='Submit']"},
		ResponseSelector: ".ac-textBlock:last-of-type",
		SettleWindow:     2 * time.Second,
	}
}

func XGrokWebProfile() SiteProfile {
	return SiteProfile{
		URL:              "https://x.com/i/grok",
		InputSelectors:   []string{"textarea[aria-label='Ask Grok anything']"},
		SubmitSelectors:  []string{"button[aria-label='Grok something']"},
		ResponseSelector: "[data-testid='grok-response']:last-of-type",
		SettleWindow:     3 * time.Second,
	}
}
