// Package locatortest provides an in-memory DOM that satisfies the locator
// contracts, for tests that should not launch a browser.
//
// Markup conventions:
//   - hidden, or style containing display:none, on an element or any ancestor
//     makes it invisible
//   - data-box="left,top,width,height" gives the element's bounding box
package locatortest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/amazon-cart-agent/internal/locator"
	"github.com/maltedev/amazon-cart-agent/internal/models"
)

var (
	ErrNoBox    = errors.New("element has no data-box")
	ErrDetached = errors.New("element no longer resolves")
)

type Click struct {
	ID        string
	Mechanism locator.Mechanism
}

type Document struct {
	mu  sync.Mutex
	doc *goquery.Document

	clicks   []Click
	scrolled []string

	// FailClick decides whether a mechanism fails for an element. Nil means
	// every click succeeds.
	FailClick func(el *Element, m locator.Mechanism) error
	// AfterClick runs after a successful click, typically to mutate the DOM
	// the way the storefront would.
	AfterClick func(el *Element, m locator.Mechanism)
	// ByIndex makes query results re-run their query on every use and take
	// the match at their original index, the way a lazily evaluated browser
	// locator behaves when the page changes underneath it.
	ByIndex bool
}

func Parse(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc}, nil
}

func MustParse(html string) *Document {
	d, err := Parse(html)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Document) Selection() *goquery.Selection {
	return d.doc.Selection
}

// SetText replaces the text of every element matching selector.
func (d *Document) SetText(selector, text string) {
	d.doc.Find(selector).SetText(text)
}

// Append adds markup at the end of body.
func (d *Document) Append(html string) {
	d.doc.Find("body").AppendHtml(html)
}

func (d *Document) Clicks() []Click {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Click(nil), d.clicks...)
}

func (d *Document) Scrolled() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.scrolled...)
}

func (d *Document) Query(selector string) ([]locator.Element, error) {
	return d.query(d.doc.Selection, selector)
}

func (d *Document) QueryText(text string) ([]locator.Element, error) {
	return d.queryText(d.doc.Selection, text)
}

func (d *Document) query(root *goquery.Selection, selector string) (elements []locator.Element, err error) {
	defer func() {
		// cascadia panics on some invalid selectors through goquery
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid selector %q: %v", selector, r)
		}
	}()

	root.Find(selector).Each(func(i int, s *goquery.Selection) {
		elements = append(elements, d.wrapAt(s, i, func() []*goquery.Selection {
			var matches []*goquery.Selection
			root.Find(selector).Each(func(_ int, m *goquery.Selection) { matches = append(matches, m) })
			return matches
		}))
	})
	return elements, nil
}

func (d *Document) queryText(root *goquery.Selection, text string) ([]locator.Element, error) {
	find := func() []*goquery.Selection {
		var matches []*goquery.Selection
		root.Find("*").Each(func(_ int, s *goquery.Selection) {
			if locator.ContainsAny(ownText(s), text) ||
				locator.ContainsAny(s.AttrOr("value", ""), text) ||
				locator.ContainsAny(s.AttrOr("aria-label", ""), text) {
				matches = append(matches, s)
			}
		})
		return matches
	}

	var elements []locator.Element
	for i, s := range find() {
		elements = append(elements, d.wrapAt(s, i, find))
	}
	return elements, nil
}

func (d *Document) wrap(s *goquery.Selection) *Element {
	return &Element{doc: d, sel: s}
}

func (d *Document) wrapAt(s *goquery.Selection, index int, find func() []*goquery.Selection) *Element {
	el := d.wrap(s)
	if d.ByIndex {
		el.resolve = func() *goquery.Selection {
			matches := find()
			if index >= len(matches) {
				return &goquery.Selection{}
			}
			return matches[index]
		}
	}
	return el
}

func (d *Document) click(el *Element, m locator.Mechanism) error {
	if el.current().Length() == 0 {
		return ErrDetached
	}
	if d.FailClick != nil {
		if err := d.FailClick(el, m); err != nil {
			return err
		}
	}

	d.mu.Lock()
	d.clicks = append(d.clicks, Click{ID: el.ID(), Mechanism: m})
	d.mu.Unlock()

	if d.AfterClick != nil {
		d.AfterClick(el, m)
	}
	return nil
}

type Element struct {
	doc     *Document
	sel     *goquery.Selection
	resolve func() *goquery.Selection
}

func (e *Element) current() *goquery.Selection {
	if e.resolve != nil {
		return e.resolve()
	}
	return e.sel
}

// ID identifies an element in assertions: its id, else data-testid, else its
// tag name.
func (e *Element) ID() string {
	if id := e.current().AttrOr("id", ""); id != "" {
		return id
	}
	if id := e.current().AttrOr("data-testid", ""); id != "" {
		return id
	}
	return goquery.NodeName(e.current())
}

func (e *Element) Selection() *goquery.Selection {
	return e.current()
}

func (e *Element) Query(selector string) ([]locator.Element, error) {
	return e.doc.query(e.current(), selector)
}

func (e *Element) QueryText(text string) ([]locator.Element, error) {
	return e.doc.queryText(e.current(), text)
}

func (e *Element) Text() (string, error) {
	return strings.Join(strings.Fields(e.current().Text()), " "), nil
}

func (e *Element) Attr(name string) (string, error) {
	return e.current().AttrOr(name, ""), nil
}

func (e *Element) Visible() (bool, error) {
	for s := e.current(); s.Length() > 0; s = s.Parent() {
		if _, hidden := s.Attr("hidden"); hidden {
			return false, nil
		}
		style := strings.ReplaceAll(strings.ToLower(s.AttrOr("style", "")), " ", "")
		if strings.Contains(style, "display:none") {
			return false, nil
		}
	}
	return true, nil
}

func (e *Element) ScrollIntoView() error {
	e.doc.mu.Lock()
	e.doc.scrolled = append(e.doc.scrolled, e.ID())
	e.doc.mu.Unlock()
	return nil
}

func (e *Element) BoundingBox() (models.Rect, error) {
	raw, ok := e.current().Attr("data-box")
	if !ok {
		return models.Rect{}, ErrNoBox
	}

	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return models.Rect{}, fmt.Errorf("malformed data-box %q", raw)
	}

	values := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return models.Rect{}, fmt.Errorf("malformed data-box %q: %w", raw, err)
		}
		values[i] = v
	}

	return models.Rect{Left: values[0], Top: values[1], Width: values[2], Height: values[3]}, nil
}

func (e *Element) OuterHTML() (string, error) {
	return goquery.OuterHtml(e.current())
}

func (e *Element) ScriptClick() error {
	return e.doc.click(e, locator.MechanismScript)
}

func (e *Element) PointerClick() error {
	return e.doc.click(e, locator.MechanismPointer)
}

func (e *Element) DispatchClick() error {
	return e.doc.click(e, locator.MechanismDispatch)
}

func (e *Element) AncestorClick() error {
	for s := e.current(); s.Length() > 0; s = s.Parent() {
		if s.Is("a, button, input") {
			return e.doc.click(e.doc.wrap(s), locator.MechanismAncestor)
		}
	}
	return errors.New("no clickable ancestor")
}

func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		}
	})
	return b.String()
}
