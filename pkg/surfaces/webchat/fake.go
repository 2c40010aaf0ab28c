package webchat

import (
	"context"
	"time"
)

// FakeProvider is an in-memory BrowserProvider for tests: it never touches a
// real browser, returning a scripted response for whatever is navigated to.
type FakeProvider struct {
	ScriptedText string
	ScriptedErr  error
}

func (f *FakeProvider) NewPage(_ context.Context, _ Session) (Page, error) {
	return &fakePage{text: f.ScriptedText, err: f.ScriptedErr}, nil
}

type fakePage struct {
	text string
	err  error
}

func (p *fakePage) Navigate(context.Context, string) error { return p.err }

func (p *fakePage) Locate(_ context.Context, selectors []string) (int, error) {
	if p.err != nil {
		return -1, p.err
	}
	if len(selectors) == 0 {
		return -1, nil
	}
	return 0, nil
}

func (p *fakePage) Fill(context.Context, string, string) error  { return p.err }
func (p *fakePage) Click(context.Context, string) error         { return p.err }

func (p *fakePage) WaitForSettled(context.Context, string, time.Duration) error { return p.err }

func (p *fakePage) ScrapeText(context.Context, string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.text, nil
}

func (p *fakePage) Close() error { return nil }
