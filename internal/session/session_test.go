package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/maltedev/amazon-cart-agent/internal/locator"
	"github.com/maltedev/amazon-cart-agent/internal/locator/locatortest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage is a scripted storefront: pressing Enter in a field swaps in the
// next page's markup.
type fakePage struct {
	doc     *locatortest.Document
	url     string
	title   string
	filled  map[string]string
	onEnter map[string]string
}

func newFakePage(html string) *fakePage {
	return &fakePage{
		doc:     locatortest.MustParse(html),
		filled:  make(map[string]string),
		onEnter: make(map[string]string),
	}
}

func (p *fakePage) Query(selector string) ([]locator.Element, error) { return p.doc.Query(selector) }

func (p *fakePage) QueryText(text string) ([]locator.Element, error) { return p.doc.QueryText(text) }

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) Title() (string, error) { return p.title, nil }

func (p *fakePage) Navigate(_ context.Context, u string) error {
	p.url = u
	return nil
}

func (p *fakePage) Fill(selector, value string) error {
	els, err := p.doc.Query(selector)
	if err != nil || len(els) == 0 {
		return errors.New("no element")
	}
	p.filled[selector] = value
	return nil
}

func (p *fakePage) Press(selector, key string) error {
	if next, ok := p.onEnter[selector]; ok && key == "Enter" {
		p.doc = locatortest.MustParse(next)
	}
	return nil
}

func (p *fakePage) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	els, err := p.doc.Query(selector)
	if err != nil {
		return err
	}
	for _, el := range els {
		if ok, _ := el.Visible(); ok {
			return nil
		}
	}
	return errors.New("timeout waiting for " + selector)
}

func testSession(page Page) *Session {
	return New(page, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		BaseURL: "https://www.amazon.in",
		Timeout: time.Second,
	})
}

func TestSigninURL(t *testing.T) {
	raw := SigninURL("https://www.amazon.in/")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "www.amazon.in", u.Host)
	assert.Equal(t, "/ap/signin", u.Path)
	assert.Equal(t, "https://www.amazon.in/?ref_=nav_signin", u.Query().Get("openid.return_to"))
	assert.Equal(t, "checkid_setup", u.Query().Get("openid.mode"))
}

func TestLogin(t *testing.T) {
	page := newFakePage(`<input id="ap_email">`)
	page.onEnter[EmailInput] = `<input id="ap_password" type="password">`
	page.onEnter[PasswordInput] = `<input id="twotabsearchtextbox">`

	err := testSession(page).Login(context.Background(), "shopper@example.com", "hunter2")
	require.NoError(t, err)

	assert.Equal(t, "shopper@example.com", page.filled[EmailInput])
	assert.Equal(t, "hunter2", page.filled[PasswordInput])
	assert.Contains(t, page.url, "/ap/signin?")
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name        string
		email       string
		start       string
		afterEmail  string
		title       string
		wantBlocked bool
	}{
		{
			name:  "Missing credentials",
			start: `<input id="ap_email">`,
		},
		{
			name:        "Captcha instead of the sign-in form",
			email:       "shopper@example.com",
			start:       `<form action="/errors/validateCaptcha"><input id="captchacharacters"></form>`,
			wantBlocked: true,
		},
		{
			name:        "Robot check title after email",
			email:       "shopper@example.com",
			start:       `<input id="ap_email">`,
			afterEmail:  `<p>Enter the characters you see below</p>`,
			title:       "Robot Check",
			wantBlocked: true,
		},
		{
			name:       "Password field never appears",
			email:      "shopper@example.com",
			start:      `<input id="ap_email">`,
			afterEmail: `<p>There was a problem</p>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newFakePage(tt.start)
			page.title = tt.title
			if tt.afterEmail != "" {
				page.onEnter[EmailInput] = tt.afterEmail
			}

			err := testSession(page).Login(context.Background(), tt.email, "secret")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAuthentication)
			assert.Equal(t, tt.wantBlocked, errors.Is(err, ErrBlocked))
		})
	}
}

func TestSearch(t *testing.T) {
	page := newFakePage(`<input id="twotabsearchtextbox">`)
	page.onEnter[SearchBox] = `<div data-component-type="s-search-result" data-asin="B0CX23V2ZK"></div>`

	require.NoError(t, testSession(page).Search(context.Background(), "laptop"))
	assert.Equal(t, "laptop", page.filled[SearchBox])
}

func TestSearchNoResults(t *testing.T) {
	page := newFakePage(`<input id="twotabsearchtextbox">`)
	page.onEnter[SearchBox] = `<h1>No results for laptop</h1>`

	err := testSession(page).Search(context.Background(), "laptop")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBlocked)
}

func TestContainers(t *testing.T) {
	doc := locatortest.MustParse(`
		<div class="s-result-item" data-asin="B0CX23V2ZK" id="first"></div>
		<div class="s-result-item" data-asin="" id="banner"></div>
		<div class="s-result-item" data-asin="  " id="spacer"></div>
		<div class="s-result-item" id="no-asin"></div>
		<div class="s-result-item" data-asin="B0D5TPBWQ1" id="second"></div>`)

	containers, err := Containers(doc)
	require.NoError(t, err)
	require.Len(t, containers, 2)
	assert.Equal(t, "first", containers[0].(*locatortest.Element).ID())
	assert.Equal(t, "second", containers[1].(*locatortest.Element).ID())
}

func TestDismissOverlays(t *testing.T) {
	doc := locatortest.MustParse(`
		<div id="cookies"><input id="sp-cc-accept" type="submit"></div>
		<div class="a-popover"><button id="close-1" class="a-button-close">x</button></div>
		<div class="glow"><button id="close-2" aria-label="Close location dialog">x</button></div>
		<button id="unrelated">Add to cart</button>`)

	n := DismissOverlays(doc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, 3, n)

	var clicked []string
	for _, c := range doc.Clicks() {
		clicked = append(clicked, c.ID)
	}
	assert.Equal(t, []string{"sp-cc-accept", "close-1", "close-2"}, clicked)
}
