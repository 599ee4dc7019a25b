package browser

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// ClickResult records which strategy landed the click.
type ClickResult struct {
	OK       bool   `json:"ok"`
	Strategy string `json:"strategy,omitempty"`
}

// TypeResult records the outcome of a type attempt. Actual is the field
// value read back after typing; Mismatch is set when something was
// written but it does not equal the intended text.
type TypeResult struct {
	OK       bool   `json:"ok"`
	Actual   string `json:"actual"`
	Strategy string `json:"strategy,omitempty"`
	Mismatch bool   `json:"mismatch"`
}

// Click tries four strategies in order, first success wins. The target
// is a CSS selector, falling back to visible-text matching when the
// selector misses or is empty.
func (d *Driver) Click(ctx context.Context, selector, text string) ClickResult {
	// Strategy 1: querySelector + element.click.
	if selector != "" {
		var ok bool
		js := fmt.Sprintf(`(() => {
			const el = document.querySelector(%q);
			if (!el) return false;
			el.scrollIntoView({block: 'center'});
			el.click();
			return true;
		})()`, selector)
		if err := d.eval(ctx, js, &ok); err == nil && ok {
			return ClickResult{OK: true, Strategy: "query_selector"}
		}
	}

	// Strategy 2: text-content search across clickable tags.
	if text != "" {
		var ok bool
		js := fmt.Sprintf(`(() => {
			const want = %q.toLowerCase();
			const els = document.querySelectorAll('button, a, [role="button"], input[type="submit"], input[type="button"], .btn');
			for (const el of els) {
				const t = (el.innerText || el.value || '').trim().toLowerCase();
				if (t && t.includes(want) && el.offsetParent !== null) {
					el.scrollIntoView({block: 'center'});
					el.click();
					return true;
				}
			}
			return false;
		})()`, text)
		if err := d.eval(ctx, js, &ok); err == nil && ok {
			return ClickResult{OK: true, Strategy: "text_content"}
		}
	}

	// Strategy 3: engine-native click via CDP search.
	target := selector
	if target == "" && text != "" {
		target = fmt.Sprintf(`//*[contains(translate(text(), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), %q)]`, strings.ToLower(text))
	}
	if target != "" {
		tctx, cancel := d.tab(ctx, d.cfg.StepTimeout)
		err := chromedp.Run(tctx, chromedp.Click(target, chromedp.BySearch, chromedp.NodeVisible))
		cancel()
		if err == nil {
			return ClickResult{OK: true, Strategy: "engine_native"}
		}
	}

	// Strategy 4: fuzzy keyword match over element attributes.
	keyword := text
	if keyword == "" {
		keyword = strings.Trim(selector, "#.[]")
	}
	if keyword != "" {
		var ok bool
		js := fmt.Sprintf(`(() => {
			const want = %q.toLowerCase();
			for (const el of document.querySelectorAll('button, a, [role="button"], input, div[onclick]')) {
				const hay = [el.id, el.name, el.className, el.getAttribute('aria-label'),
							 el.getAttribute('data-testid'), el.title].join(' ').toLowerCase();
				if (hay.includes(want) && el.offsetParent !== null) {
					el.scrollIntoView({block: 'center'});
					el.click();
					return true;
				}
			}
			return false;
		})()`, keyword)
		if err := d.eval(ctx, js, &ok); err == nil && ok {
			return ClickResult{OK: true, Strategy: "fuzzy_attribute"}
		}
	}

	log.Printf("Click failed on selector=%q text=%q", selector, truncateForLog(text, 40))
	return ClickResult{OK: false}
}

// Type writes text into a field, verifying by readback after every
// strategy. A non-empty but mismatched readback still counts as
// success so the controller can surface a type-mismatch warning
// instead of retrying forever.
func (d *Driver) Type(ctx context.Context, selector, text string) TypeResult {
	// Strategy 1: clear + send keys through the engine.
	if selector != "" {
		tctx, cancel := d.tab(ctx, d.cfg.StepTimeout)
		err := chromedp.Run(tctx,
			chromedp.Clear(selector, chromedp.ByQuery),
			chromedp.SendKeys(selector, text, chromedp.ByQuery),
		)
		cancel()
		if err == nil {
			if res, done := d.readback(ctx, selector, text, "engine_sendkeys"); done {
				return res
			}
		}
	}

	// Strategy 2: locate by label/placeholder text, then send keys.
	if text != "" && selector != "" {
		xpath := fmt.Sprintf(`//input[@placeholder and contains(translate(@placeholder, 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), %q)]`,
			strings.ToLower(strings.Trim(selector, "#.[]")))
		tctx, cancel := d.tab(ctx, d.cfg.StepTimeout)
		err := chromedp.Run(tctx, chromedp.SendKeys(xpath, text, chromedp.BySearch))
		cancel()
		if err == nil {
			if res, done := d.readback(ctx, selector, text, "engine_label"); done {
				return res
			}
		}
	}

	// Strategy 3: native value setter + synthetic input/change events.
	// Framework-controlled inputs (React and friends) ignore plain
	// value assignment.
	if selector != "" {
		var ok bool
		js := fmt.Sprintf(`(() => {
			const el = document.querySelector(%q);
			if (!el) return false;
			const proto = el.tagName === 'TEXTAREA' ? window.HTMLTextAreaElement.prototype : window.HTMLInputElement.prototype;
			const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
			setter.call(el, %q);
			el.dispatchEvent(new Event('input', { bubbles: true }));
			el.dispatchEvent(new Event('change', { bubbles: true }));
			return true;
		})()`, selector, text)
		if err := d.eval(ctx, js, &ok); err == nil && ok {
			if res, done := d.readback(ctx, selector, text, "js_native_setter"); done {
				return res
			}
		}
	}

	// Strategy 4: fuzzy attribute-keyword match.
	keyword := strings.Trim(selector, "#.[]")
	if keyword != "" {
		var matched string
		js := fmt.Sprintf(`(() => {
			const want = %q.toLowerCase();
			for (const el of document.querySelectorAll('input, textarea')) {
				const hay = [el.id, el.name, el.placeholder, el.getAttribute('aria-label')].join(' ').toLowerCase();
				if (hay.includes(want) && el.offsetParent !== null) {
					const setter = Object.getOwnPropertyDescriptor(window.HTMLInputElement.prototype, 'value').set;
					setter.call(el, %q);
					el.dispatchEvent(new Event('input', { bubbles: true }));
					el.dispatchEvent(new Event('change', { bubbles: true }));
					return el.value;
				}
			}
			return '';
		})()`, keyword, text)
		if err := d.eval(ctx, js, &matched); err == nil && matched != "" {
			if matched == text {
				return TypeResult{OK: true, Actual: matched, Strategy: "fuzzy_attribute"}
			}
			return TypeResult{OK: true, Actual: matched, Strategy: "fuzzy_attribute", Mismatch: true}
		}
	}

	// Last readback: partial writes still count, with a mismatch flag.
	if selector != "" {
		if actual := d.fieldValue(ctx, selector); actual != "" {
			log.Printf("Type mismatch on %q: wanted %q got %q", selector, truncateForLog(text, 30), truncateForLog(actual, 30))
			return TypeResult{OK: true, Actual: actual, Mismatch: true}
		}
	}
	return TypeResult{OK: false}
}

// readback verifies a strategy by re-reading the field. Exact match
// finishes the cascade; anything else lets the next strategy run.
func (d *Driver) readback(ctx context.Context, selector, want, strategy string) (TypeResult, bool) {
	actual := d.fieldValue(ctx, selector)
	if actual == want {
		return TypeResult{OK: true, Actual: actual, Strategy: strategy}, true
	}
	return TypeResult{}, false
}

func (d *Driver) fieldValue(ctx context.Context, selector string) string {
	var val string
	js := fmt.Sprintf(`(() => { const el = document.querySelector(%q); return el ? el.value : ''; })()`, selector)
	if err := d.eval(ctx, js, &val); err != nil {
		return ""
	}
	return val
}

// Select picks an option from a select element, matching by value then
// by visible text.
func (d *Driver) Select(ctx context.Context, selector, value string) error {
	var ok bool
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		const want = %q;
		for (const opt of el.options) {
			if (opt.value === want || opt.text.trim().toLowerCase() === want.toLowerCase()) {
				el.value = opt.value;
				el.dispatchEvent(new Event('change', { bubbles: true }));
				return true;
			}
		}
		return false;
	})()`, selector, value)
	if err := d.eval(ctx, js, &ok); err != nil {
		return fmt.Errorf("select %s: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("select %s: no option matches %q", selector, value)
	}
	return nil
}

// PressKey sends a keyboard key (Enter, Tab, Escape) to the focused
// element.
func (d *Driver) PressKey(ctx context.Context, key string) error {
	var code string
	switch strings.ToLower(key) {
	case "enter", "return":
		code = kb.Enter
	case "tab":
		code = kb.Tab
	case "escape", "esc":
		code = kb.Escape
	default:
		code = key
	}
	tctx, cancel := d.tab(ctx, d.cfg.StepTimeout)
	defer cancel()
	if err := chromedp.Run(tctx, chromedp.KeyEvent(code)); err != nil {
		return fmt.Errorf("press key %q: %w", key, err)
	}
	return nil
}

// Scroll moves the viewport and reports the resulting vertical offset
// so the controller can detect no-op scrolls at the page bottom.
func (d *Driver) Scroll(ctx context.Context, deltaY int) (int, error) {
	var offset int
	js := fmt.Sprintf(`(() => { window.scrollBy(0, %d); return Math.round(window.scrollY); })()`, deltaY)
	if err := d.eval(ctx, js, &offset); err != nil {
		return 0, fmt.Errorf("scroll: %w", err)
	}
	return offset, nil
}

// ScrollToTop resets the viewport before a verification screenshot.
func (d *Driver) ScrollToTop(ctx context.Context) error {
	var ignored int
	return d.eval(ctx, `(() => { window.scrollTo(0, 0); return 0; })()`, &ignored)
}
