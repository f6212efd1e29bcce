package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"otp_forwarder_bot/internal/domain/otp"

	"gopkg.in/telebot.v3"
)

var errFake = errors.New("fake failure")

type sentMessage struct {
	chatID  int64
	text    string
	options *telebot.SendOptions
}

type fakeClient struct {
	mu   sync.Mutex
	err  error
	sent []sentMessage
}

func (c *fakeClient) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sentMessage{chatID: chatID, text: text, options: options})
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	fail  bool
	texts []string
}

func (n *fakeNotifier) Dispatch(ctx context.Context, text string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return false
	}
	n.texts = append(n.texts, text)
	return true
}

func (n *fakeNotifier) Sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts...)
}

func (n *fakeNotifier) SetFail(fail bool) {
	n.mu.Lock()
	n.fail = fail
	n.mu.Unlock()
}

type memoryRepo struct {
	mu        sync.Mutex
	entries   []otp.DedupEntry
	lookupErr error
	recordErr error
}

func (r *memoryRepo) IsDuplicate(ctx context.Context, code, phone string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookupErr != nil {
		return false, r.lookupErr
	}
	key := otp.DedupKey(code, phone)
	for _, e := range r.entries {
		if e.Key == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) Record(ctx context.Context, code, phone string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return r.recordErr
	}
	r.entries = append(r.entries, otp.NewDedupEntry(code, phone, at))
	return nil
}

func (r *memoryRepo) ClearOldDuplicates(ctx context.Context, maxAge time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept, removed := otp.FilterNewerThan(r.entries, time.Now().Add(-maxAge))
	r.entries = kept
	return removed, nil
}

func (r *memoryRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries), nil
}

func (r *memoryRepo) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		keys = append(keys, e.Key)
	}
	return keys
}

type fakeAuth struct {
	mu         sync.Mutex
	loginErrs  []error // consumed one per Login call; nil when exhausted
	valid      bool
	validErr   error
	logins     int
	validCalls int
}

func (a *fakeAuth) Login(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logins++
	if len(a.loginErrs) == 0 {
		a.valid = true
		return nil
	}
	err := a.loginErrs[0]
	a.loginErrs = a.loginErrs[1:]
	if err == nil {
		a.valid = true
	}
	return err
}

func (a *fakeAuth) IsSessionValid(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.validCalls++
	return a.valid, a.validErr
}

func (a *fakeAuth) Expire() {
	a.mu.Lock()
	a.valid = false
	a.mu.Unlock()
}

func (a *fakeAuth) Logins() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.logins
}

func (a *fakeAuth) ValidCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.validCalls
}

type fakePage struct {
	mu      sync.Mutex
	handler func(string)
	cells   []string
	cellErr error
	openErr error
	armErr  error
	opens   int
	arms    int
	reads   int
}

func (p *fakePage) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	return p.openErr
}

func (p *fakePage) ArmObserver(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.arms++
	return p.armErr
}

func (p *fakePage) OnRowChange(handler func(content string)) {
	p.mu.Lock()
	p.handler = handler
	p.mu.Unlock()
}

func (p *fakePage) TopRowCells(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	if p.cellErr != nil {
		return nil, p.cellErr
	}
	return append([]string(nil), p.cells...), nil
}

// Emit simulates the mutation observer reporting the top row's markup.
func (p *fakePage) Emit(markup string, cells []string) {
	p.mu.Lock()
	p.cells = cells
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h(markup)
	}
}

func (p *fakePage) Arms() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.arms
}

func (p *fakePage) Reads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

func ivoryCoastRow(code string) []string {
	return []string{
		"IVORY COAST 2304\n2250707210653",
		"SVC1",
		"Paid",
		"Limit",
		"Your login code: " + code + " is your pin",
	}
}
