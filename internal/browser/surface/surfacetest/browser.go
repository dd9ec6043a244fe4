// internal/browser/surface/surfacetest/browser.go
package surfacetest

import (
	"context"
	"sync"

	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
)

// Browser hands out fake pages. NewPageFunc builds each page; by default an
// empty about:blank page is returned.
type Browser struct {
	NewPageFunc func() *Page
	NewPageErr  error
	CloseErr    error

	mu     sync.Mutex
	pages  []*Page
	closed bool
}

func (b *Browser) NewPage(ctx context.Context) (surface.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.NewPageErr != nil {
		return nil, b.NewPageErr
	}
	var p *Page
	if b.NewPageFunc != nil {
		p = b.NewPageFunc()
	} else {
		p = NewPage("about:blank")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages = append(b.pages, p)
	return p, nil
}

func (b *Browser) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return b.CloseErr
}

// Pages returns every page handed out so far.
func (b *Browser) Pages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Page(nil), b.pages...)
}

func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Launcher returns Browser from every Launch, or Err.
type Launcher struct {
	Browser *Browser
	Err     error

	mu       sync.Mutex
	launches []surface.LaunchOptions
}

func (l *Launcher) Launch(ctx context.Context, opts surface.LaunchOptions) (surface.Browser, error) {
	l.mu.Lock()
	l.launches = append(l.launches, opts)
	l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	if l.Browser == nil {
		l.Browser = &Browser{}
	}
	return l.Browser, nil
}

// Launches returns the options of every Launch call.
func (l *Launcher) Launches() []surface.LaunchOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]surface.LaunchOptions(nil), l.launches...)
}
