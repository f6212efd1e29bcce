package browser

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// ErrNoStrategy is returned when LaunchFirst is given nothing to try.
var ErrNoStrategy = errors.New("no browser launch strategy configured")

// LaunchStrategy is one way of starting the browser: an executable and a flag set.
type LaunchStrategy struct {
	Name    string
	Options []chromedp.ExecAllocatorOption
}

// Launcher starts a session from allocator options. Start is the production launcher.
type Launcher func(ctx context.Context, opts []chromedp.ExecAllocatorOption) (*Session, error)

// LaunchOptions drive the default strategy list.
type LaunchOptions struct {
	ChromePath string // Tried first when set
	Headless   bool
	UserAgent  string
	// SystemPaths are probed in order; missing files are skipped.
	SystemPaths []string
	// exists is swapped in tests.
	exists func(path string) bool
}

// DefaultSystemPaths are the browser locations found on common container hosts.
var DefaultSystemPaths = []string{
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
}

var minimalFlags = []chromedp.ExecAllocatorOption{
	chromedp.NoSandbox,
	chromedp.DisableGPU,
	chromedp.NoFirstRun,
	chromedp.Flag("disable-setuid-sandbox", true),
	chromedp.Flag("disable-dev-shm-usage", true),
	chromedp.Flag("single-process", true),
	chromedp.Flag("no-zygote", true),
}

var compatibilityFlags = []chromedp.ExecAllocatorOption{
	chromedp.Flag("disable-accelerated-2d-canvas", true),
	chromedp.Flag("disable-gpu-sandbox", true),
	chromedp.Flag("disable-software-rasterizer", true),
	chromedp.Flag("disable-background-timer-throttling", true),
	chromedp.Flag("disable-backgrounding-occluded-windows", true),
	chromedp.Flag("disable-renderer-backgrounding", true),
	chromedp.Flag("disable-features", "TranslateUI,VizDisplayCompositor"),
	chromedp.Flag("disable-extensions", true),
	chromedp.Flag("disable-default-apps", true),
	chromedp.Flag("disable-sync", true),
	chromedp.Flag("hide-scrollbars", true),
	chromedp.Flag("mute-audio", true),
	chromedp.Flag("no-default-browser-check", true),
	chromedp.Flag("disable-notifications", true),
	chromedp.Flag("disable-ipc-flooding-protection", true),
}

// DefaultStrategies returns, in order: the explicit CHROME_PATH, each installed system
// browser, chromedp's own lookup with minimal flags, and the same with every
// compatibility flag the known hosting providers needed.
func DefaultStrategies(o LaunchOptions) []LaunchStrategy {
	exists := o.exists
	if exists == nil {
		exists = fileExists
	}
	paths := o.SystemPaths
	if paths == nil {
		paths = DefaultSystemPaths
	}

	var strategies []LaunchStrategy
	if o.ChromePath != "" {
		strategies = append(strategies, LaunchStrategy{
			Name:    "explicit:" + o.ChromePath,
			Options: o.build(minimalFlags, chromedp.ExecPath(o.ChromePath)),
		})
	}
	for _, p := range paths {
		if p == o.ChromePath || !exists(p) {
			continue
		}
		strategies = append(strategies, LaunchStrategy{
			Name:    "system:" + p,
			Options: o.build(minimalFlags, chromedp.ExecPath(p)),
		})
	}
	strategies = append(strategies,
		LaunchStrategy{Name: "default-minimal", Options: o.build(minimalFlags)},
		LaunchStrategy{Name: "default-compat", Options: o.build(append(append([]chromedp.ExecAllocatorOption{}, minimalFlags...), compatibilityFlags...))},
	)
	return strategies
}

func (o LaunchOptions) build(flags []chromedp.ExecAllocatorOption, extra ...chromedp.ExecAllocatorOption) []chromedp.ExecAllocatorOption {
	opts := make([]chromedp.ExecAllocatorOption, 0, len(chromedp.DefaultExecAllocatorOptions)+len(flags)+len(extra)+3)
	opts = append(opts, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, flags...)
	opts = append(opts, chromedp.WindowSize(1366, 768))
	if o.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(o.UserAgent))
	}
	if !o.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	return append(opts, extra...)
}

// LaunchFirst tries each strategy in order and returns the first session that starts.
func LaunchFirst(ctx context.Context, launch Launcher, strategies []LaunchStrategy, logger *logrus.Entry) (*Session, error) {
	if len(strategies) == 0 {
		return nil, ErrNoStrategy
	}

	var errs []error
	for i, s := range strategies {
		logCtx := logger.WithFields(logrus.Fields{"strategy": s.Name, "attempt": i + 1})
		sess, err := launch(ctx, s.Options)
		if err == nil {
			logCtx.Info("Browser launched")
			return sess, nil
		}
		logCtx.WithError(err).Warn("Browser launch strategy failed")
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all browser launch strategies failed: %w", errors.Join(errs...))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
