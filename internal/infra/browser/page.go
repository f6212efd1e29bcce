package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// ErrTableNotFound is returned when the monitored table is missing after navigation.
var ErrTableNotFound = errors.New("monitored table not found")

const evalTimeout = 10 * time.Second

// MonitoredPage is the live SMS page of a Session.
type MonitoredPage struct {
	session       *Session
	url           string
	tableSelector string
	navTimeout    time.Duration

	mu           sync.RWMutex
	handler      func(content string)
	bindingAdded bool
}

func NewMonitoredPage(s *Session, url, tableSelector string, navTimeout time.Duration) *MonitoredPage {
	p := &MonitoredPage{
		session:       s,
		url:           url,
		tableSelector: tableSelector,
		navTimeout:    navTimeout,
	}
	chromedp.ListenTarget(s.Context(), p.onEvent)
	return p
}

// OnRowChange registers the push-path handler.
func (p *MonitoredPage) OnRowChange(handler func(content string)) {
	p.mu.Lock()
	p.handler = handler
	p.mu.Unlock()
}

// onEvent runs on chromedp's event loop and must not block or run actions.
func (p *MonitoredPage) onEvent(ev interface{}) {
	e, ok := ev.(*runtime.EventBindingCalled)
	if !ok || e.Name != rowChangedBinding {
		return
	}
	p.mu.RLock()
	h := p.handler
	p.mu.RUnlock()
	if h != nil {
		h(e.Payload)
	}
}

// Open navigates to the monitored URL and waits for the table.
func (p *MonitoredPage) Open(ctx context.Context) error {
	err := p.session.Run(ctx, p.navTimeout,
		chromedp.Navigate(p.url),
		chromedp.WaitVisible(p.tableSelector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", p.url, err)
	}
	return nil
}

// ArmObserver installs the row-change binding (once per browser tab; bindings survive
// navigation) and attaches a fresh observer to the current document.
func (p *MonitoredPage) ArmObserver(ctx context.Context) error {
	p.mu.Lock()
	needBinding := !p.bindingAdded
	p.mu.Unlock()

	if needBinding {
		if err := p.session.Run(ctx, evalTimeout, runtime.AddBinding(rowChangedBinding)); err != nil {
			return fmt.Errorf("failed to add row binding: %w", err)
		}
		p.mu.Lock()
		p.bindingAdded = true
		p.mu.Unlock()
	}

	var attached bool
	if err := p.session.Run(ctx, evalTimeout, chromedp.Evaluate(observerScript(p.tableSelector), &attached)); err != nil {
		return fmt.Errorf("failed to attach row observer: %w", err)
	}
	if !attached {
		return ErrTableNotFound
	}
	return nil
}

// TopRowCells returns the cell texts of the first data row; empty when the table has no rows.
func (p *MonitoredPage) TopRowCells(ctx context.Context) ([]string, error) {
	var cells []string
	if err := p.session.Run(ctx, evalTimeout, chromedp.Evaluate(topRowScript(p.tableSelector), &cells)); err != nil {
		return nil, fmt.Errorf("failed to read top row: %w", err)
	}
	return cells, nil
}
