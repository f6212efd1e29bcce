// Package browser holds the chromedp-backed browsing session, the portal login flow
// and the monitored-page adapter.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Session is a live browser with one tab. Close must be called on every exit path.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	closeOnce   sync.Once
}

// Start launches a browser with the given allocator options and opens its first tab.
func Start(parent context.Context, opts []chromedp.ExecAllocatorOption, errorf func(string, ...interface{})) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)

	var ctxOpts []chromedp.ContextOption
	if errorf != nil {
		ctxOpts = append(ctxOpts, chromedp.WithErrorf(errorf))
	}
	ctx, cancel := chromedp.NewContext(allocCtx, ctxOpts...)

	// Running with no actions starts the browser and the tab.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Context is the tab context; chromedp actions must run on it or a child of it.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (s *Session) Run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		// Cancel asks the browser to exit gracefully before the allocator kills the process.
		_ = chromedp.Cancel(s.ctx)
		s.cancel()
		s.allocCancel()
	})
}
