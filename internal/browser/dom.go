package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maltedev/amazon-cart-agent/internal/cart"
	"github.com/maltedev/amazon-cart-agent/internal/locator"
	"github.com/maltedev/amazon-cart-agent/internal/models"
	"github.com/playwright-community/playwright-go"
)

var ErrNoBoundingBox = errors.New("element is not rendered")

const (
	outerHTMLScript   = `el => el.outerHTML`
	scriptClickScript = `el => el.click()`
	ancestorScript    = `el => {
		let e = el;
		while (e && !e.matches('a, button, input')) e = e.parentElement;
		if (!e) throw new Error('no clickable ancestor');
		e.click();
	}`
)

// Page adapts a playwright page. It satisfies locator.Scope, session.Page,
// checkout.Page and cart.Tab.
type Page struct {
	page    playwright.Page
	browser *Browser
}

func (p *Page) Raw() playwright.Page {
	return p.page
}

func (p *Page) Query(selector string) ([]locator.Element, error) {
	return p.browser.elements(p.page.QuerySelectorAll(selector))
}

func (p *Page) QueryText(text string) ([]locator.Element, error) {
	return p.browser.elements(p.page.QuerySelectorAll(textSelector(text)))
}

func (p *Page) URL() string {
	return p.page.URL()
}

func (p *Page) Title() (string, error) {
	return p.page.Title()
}

func (p *Page) Content() (string, error) {
	return p.page.Content()
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.browser.NavigateWithRetry(ctx, p.page, url)
}

func (p *Page) Fill(selector, value string) error {
	return p.page.Locator(selector).First().Fill(value)
}

func (p *Page) Press(selector, key string) error {
	return p.page.Locator(selector).First().Press(key)
}

func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	return p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (p *Page) Close() error {
	return p.page.Close()
}

// OpenTab opens url in a new page of the same context, sharing the session's
// cookies and cart.
func (b *Browser) OpenTab(ctx context.Context, url string) (cart.Tab, error) {
	page, err := b.NewPage()
	if err != nil {
		return nil, err
	}
	if err := page.Navigate(ctx, url); err != nil {
		page.Close()
		return nil, err
	}
	return page, nil
}

// elements pins every match to its element handle, so later calls act on
// the node that was matched even after the page re-renders around it.
func (b *Browser) elements(handles []playwright.ElementHandle, err error) ([]locator.Element, error) {
	if err != nil {
		return nil, err
	}

	elements := make([]locator.Element, len(handles))
	for i, h := range handles {
		elements[i] = &Element{handle: h, browser: b}
	}
	return elements, nil
}

func textSelector(text string) string {
	return fmt.Sprintf("text=%s", text)
}

// Element adapts a playwright element handle.
type Element struct {
	handle  playwright.ElementHandle
	browser *Browser
}

func (e *Element) Query(selector string) ([]locator.Element, error) {
	return e.browser.elements(e.handle.QuerySelectorAll(selector))
}

func (e *Element) QueryText(text string) ([]locator.Element, error) {
	return e.browser.elements(e.handle.QuerySelectorAll(textSelector(text)))
}

func (e *Element) Text() (string, error) {
	return e.handle.InnerText()
}

func (e *Element) Attr(name string) (string, error) {
	return e.handle.GetAttribute(name)
}

func (e *Element) Visible() (bool, error) {
	return e.handle.IsVisible()
}

func (e *Element) ScrollIntoView() error {
	return e.handle.ScrollIntoViewIfNeeded(playwright.ElementHandleScrollIntoViewIfNeededOptions{Timeout: e.timeout()})
}

func (e *Element) BoundingBox() (models.Rect, error) {
	box, err := e.handle.BoundingBox()
	if err != nil {
		return models.Rect{}, err
	}
	if box == nil {
		return models.Rect{}, ErrNoBoundingBox
	}
	return models.Rect{Left: box.X, Top: box.Y, Width: box.Width, Height: box.Height}, nil
}

func (e *Element) OuterHTML() (string, error) {
	v, err := e.handle.Evaluate(outerHTMLScript)
	if err != nil {
		return "", err
	}
	html, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected outerHTML result %T", v)
	}
	return html, nil
}

func (e *Element) ScriptClick() error {
	_, err := e.handle.Evaluate(scriptClickScript)
	return err
}

func (e *Element) PointerClick() error {
	if err := e.handle.Hover(playwright.ElementHandleHoverOptions{Timeout: e.timeout()}); err != nil {
		return err
	}
	return e.handle.Click(playwright.ElementHandleClickOptions{Timeout: e.timeout()})
}

func (e *Element) DispatchClick() error {
	return e.handle.DispatchEvent("click")
}

func (e *Element) AncestorClick() error {
	_, err := e.handle.Evaluate(ancestorScript)
	return err
}

func (e *Element) timeout() *float64 {
	return playwright.Float(float64(e.browser.opts.ClickTimeout.Milliseconds()))
}
