package web

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/pdellibergoli/ai-test-automation/internal/config"
	"github.com/pdellibergoli/ai-test-automation/internal/controller"
)

// indexAttribute marks interactive elements with their highlight index so
// later actions can address them by CSS selector.
const indexAttribute = "data-agent-index"

// snapshotJS walks the DOM, tags every interactive element with its
// highlight index and returns a compact description per element.
const snapshotJS = `(() => {
	const selector = 'a[href], button, input, select, textarea, [onclick], [role="button"], [role="link"], [role="menuitem"]';
	const visible = el => {
		const r = el.getBoundingClientRect();
		const s = window.getComputedStyle(el);
		return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none';
	};
	document.querySelectorAll('[` + indexAttribute + `]').forEach(el => el.removeAttribute('` + indexAttribute + `'));
	const out = [];
	let index = 0;
	for (const el of document.querySelectorAll(selector)) {
		if (!visible(el)) continue;
		el.setAttribute('` + indexAttribute + `', String(index));
		out.push({
			index: index,
			tag: el.tagName.toLowerCase(),
			type: el.getAttribute('type') || '',
			text: (el.innerText || el.value || el.getAttribute('placeholder') || el.getAttribute('aria-label') || '').trim().slice(0, 120),
		});
		index++;
	}
	return out;
})()`

type elementInfo struct {
	Index int    `json:"index"`
	Tag   string `json:"tag"`
	Type  string `json:"type"`
	Text  string `json:"text"`
}

// Device drives a Chromium tab through the DevTools protocol. Element
// actions address targets by the highlight index assigned during the
// most recent State call.
type Device struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu       sync.Mutex
	elements map[int]elementInfo
}

// New starts a browser instance and returns the device handle.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Device, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Device{
		logger:        logger.Named("web_device"),
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		elements:      make(map[int]elementInfo),
	}, nil
}

// Close shuts the browser down.
func (d *Device) Close() {
	d.browserCancel()
	d.allocCancel()
}

// Navigate opens the given URL and waits for the document body.
func (d *Device) Navigate(ctx context.Context, url string) error {
	timeout := d.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	runCtx, cancelRun := d.actionCtx(ctx)
	defer cancelRun()
	navCtx, cancel := context.WithTimeout(runCtx, timeout)
	defer cancel()

	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	d.logger.Info("Navigated", zap.String("url", url))
	return nil
}

// actionCtx merges the caller's cancellation with the browser tab
// context. The returned cancel must be called to release the bridge.
func (d *Device) actionCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(d.browserCtx)
	stop := context.AfterFunc(ctx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

func selectorFor(index int) string {
	return fmt.Sprintf(`[%s="%d"]`, indexAttribute, index)
}

// State refreshes the element index map and returns the serialized view.
func (d *Device) State(ctx context.Context) (string, int, error) {
	runCtx, cancel := d.actionCtx(ctx)
	defer cancel()

	var infos []elementInfo
	if err := chromedp.Run(runCtx, chromedp.Evaluate(snapshotJS, &infos)); err != nil {
		return "", 0, fmt.Errorf("failed to snapshot page: %w", err)
	}

	d.mu.Lock()
	d.elements = make(map[int]elementInfo, len(infos))
	for _, info := range infos {
		d.elements[info.Index] = info
	}
	d.mu.Unlock()

	var b strings.Builder
	for _, info := range infos {
		label := info.Tag
		if info.Type != "" {
			label += "[" + info.Type + "]"
		}
		fmt.Fprintf(&b, "[%d] <%s> %s\n", info.Index, label, info.Text)
	}
	return b.String(), len(infos), nil
}

// HasElement reports whether the index was seen in the last snapshot,
// refreshing the snapshot first if none was taken yet.
func (d *Device) HasElement(ctx context.Context, index int) (bool, error) {
	d.mu.Lock()
	empty := len(d.elements) == 0
	d.mu.Unlock()
	if empty {
		if _, _, err := d.State(ctx); err != nil {
			return false, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.elements[index]
	return ok, nil
}

// TapElement clicks the element with the given highlight index.
func (d *Device) TapElement(ctx context.Context, index int) error {
	runCtx, cancel := d.actionCtx(ctx)
	defer cancel()

	sel := selectorFor(index)
	return chromedp.Run(runCtx,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	)
}

// EnterText clears the element and types the text into it.
func (d *Device) EnterText(ctx context.Context, index int, text string) error {
	runCtx, cancel := d.actionCtx(ctx)
	defer cancel()

	sel := selectorFor(index)
	return chromedp.Run(runCtx,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Focus(sel, chromedp.ByQuery),
		chromedp.SetValue(sel, "", chromedp.ByQuery),
		chromedp.SendKeys(sel, text, chromedp.ByQuery),
	)
}

// ScrollIntoView brings the element into the viewport.
func (d *Device) ScrollIntoView(ctx context.Context, index int) error {
	runCtx, cancel := d.actionCtx(ctx)
	defer cancel()
	return chromedp.Run(runCtx,
		chromedp.ScrollIntoView(selectorFor(index), chromedp.ByQuery),
	)
}

// ScrollPage scrolls by amount pixels, or one viewport height when
// amount is zero.
func (d *Device) ScrollPage(ctx context.Context, direction controller.ScrollDirection, amount int) error {
	expr := "window.scrollBy(0, "
	dist := "window.innerHeight"
	if amount > 0 {
		dist = fmt.Sprintf("%d", amount)
	}
	if direction == controller.ScrollUp {
		dist = "-(" + dist + ")"
	}
	expr += dist + ")"
	runCtx, cancel := d.actionCtx(ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Evaluate(expr, nil))
}

// SendKeys sends keyboard input to the focused element. Well-known key
// names map onto their control characters.
func (d *Device) SendKeys(ctx context.Context, keys string) error {
	runCtx, cancel := d.actionCtx(ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.KeyEvent(translateKeys(keys)))
}

func translateKeys(keys string) string {
	switch strings.ToLower(keys) {
	case "enter", "return":
		return kb.Enter
	case "tab":
		return kb.Tab
	case "backspace":
		return kb.Backspace
	case "delete":
		return kb.Delete
	case "escape", "esc":
		return kb.Escape
	case "arrowdown", "down":
		return kb.ArrowDown
	case "arrowup", "up":
		return kb.ArrowUp
	case "arrowleft", "left":
		return kb.ArrowLeft
	case "arrowright", "right":
		return kb.ArrowRight
	default:
		return keys
	}
}

// Swipe is expressed as a mouse drag; browsers have no touch surface by
// default.
func (d *Device) Swipe(ctx context.Context, startX, startY, endX, endY, durationMs int) error {
	return d.drag(ctx, startX, startY, endX, endY, durationMs)
}

// Pinch has no mouse equivalent.
func (d *Device) Pinch(ctx context.Context, centerX, centerY, percent int) error {
	return controller.ErrNotSupported
}

// LongPress holds the primary button down at the coordinates.
func (d *Device) LongPress(ctx context.Context, x, y, durationMs int) error {
	runCtx, cancel := d.actionCtx(ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.ActionFunc(func(c context.Context) error {
		if err := mouseEvent(c, input.MousePressed, float64(x), float64(y)); err != nil {
			return err
		}
		select {
		case <-time.After(time.Duration(durationMs) * time.Millisecond):
		case <-c.Done():
			return c.Err()
		}
		return mouseEvent(c, input.MouseReleased, float64(x), float64(y))
	}))
}

// DragAndDrop drags from the start to the end coordinates.
func (d *Device) DragAndDrop(ctx context.Context, startX, startY, endX, endY, durationMs int) error {
	return d.drag(ctx, startX, startY, endX, endY, durationMs)
}

func (d *Device) drag(ctx context.Context, startX, startY, endX, endY, durationMs int) error {
	const steps = 10
	pause := time.Duration(durationMs) * time.Millisecond / steps

	runCtx, cancel := d.actionCtx(ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.ActionFunc(func(c context.Context) error {
		if err := mouseEvent(c, input.MousePressed, float64(startX), float64(startY)); err != nil {
			return err
		}
		for i := 1; i <= steps; i++ {
			x := float64(startX) + float64(endX-startX)*float64(i)/steps
			y := float64(startY) + float64(endY-startY)*float64(i)/steps
			if err := input.DispatchMouseEvent(input.MouseMoved, x, y).Do(c); err != nil {
				return err
			}
			select {
			case <-time.After(pause):
			case <-c.Done():
				return c.Err()
			}
		}
		return mouseEvent(c, input.MouseReleased, float64(endX), float64(endY))
	}))
}

func mouseEvent(ctx context.Context, typ input.MouseType, x, y float64) error {
	return input.DispatchMouseEvent(typ, x, y).
		WithButton(input.Left).
		WithClickCount(1).
		Do(ctx)
}

// DropdownOptions lists the option texts of a select element.
func (d *Device) DropdownOptions(ctx context.Context, index int) ([]string, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector('%s');
		if (!el || el.tagName.toLowerCase() !== 'select') return null;
		return Array.from(el.options).map(o => o.text.trim());
	})()`, selectorFor(index))

	runCtx, cancel := d.actionCtx(ctx)
	defer cancel()

	var options []string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, &options)); err != nil {
		return nil, fmt.Errorf("element %d is not a readable dropdown: %w", index, err)
	}
	return options, nil
}

// SelectDropdownOption selects the option whose text matches exactly and
// fires the change event.
func (d *Device) SelectDropdownOption(ctx context.Context, index int, text string) error {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector('%s');
		if (!el || el.tagName.toLowerCase() !== 'select') return false;
		for (const o of el.options) {
			if (o.text.trim() === %q) {
				el.value = o.value;
				el.dispatchEvent(new Event('change', { bubbles: true }));
				return true;
			}
		}
		return false;
	})()`, selectorFor(index), text)

	runCtx, cancel := d.actionCtx(ctx)
	defer cancel()

	var ok bool
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, &ok)); err != nil {
		return fmt.Errorf("failed to select dropdown option: %w", err)
	}
	if !ok {
		return fmt.Errorf("no option with text %q in dropdown %d", text, index)
	}
	return nil
}
