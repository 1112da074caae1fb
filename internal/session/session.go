// Package session signs into the storefront and runs the product search.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/maltedev/amazon-cart-agent/internal/locator"
)

const (
	EmailInput      = "#ap_email"
	PasswordInput   = "#ap_password"
	SearchBox       = "#twotabsearchtextbox"
	SearchResult    = "div[data-component-type='s-search-result'][data-asin]"
	ResultContainer = "div.s-result-item[data-asin]"
)

var (
	ErrAuthentication = errors.New("authentication failed")
	ErrBlocked        = errors.New("blocked by captcha or robot check")
)

var captchaSelectors = []string{
	"#captchacharacters",
	"#auth-captcha-image",
	"form[action*='Captcha']",
	"form[action*='validateCaptcha']",
}

type Page interface {
	locator.Scope
	URL() string
	Title() (string, error)
	Navigate(ctx context.Context, url string) error
	Fill(selector, value string) error
	Press(selector, key string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
}

type Options struct {
	BaseURL string
	Timeout time.Duration
}

type Session struct {
	page   Page
	logger *slog.Logger
	opts   Options
}

func New(page Page, logger *slog.Logger, opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	return &Session{
		page:   page,
		logger: logger.With("component", "session"),
		opts:   opts,
	}
}

// SigninURL builds the sign-in URL that returns to the storefront home page
// after authentication.
func SigninURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	const identifierSelect = "http://specs.openid.net/auth/2.0/identifier_select"

	q := url.Values{}
	q.Set("openid.pape.max_auth_age", "0")
	q.Set("openid.return_to", base+"/?ref_=nav_signin")
	q.Set("openid.identity", identifierSelect)
	q.Set("openid.assoc_handle", "inflex")
	q.Set("openid.mode", "checkid_setup")
	q.Set("openid.claimed_id", identifierSelect)
	q.Set("openid.ns", "http://specs.openid.net/auth/2.0")

	return base + "/ap/signin?" + q.Encode()
}

// Login fills the two-step sign-in form and waits for the search box. Every
// failure is reported as ErrAuthentication.
func (s *Session) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("%w: missing credentials", ErrAuthentication)
	}

	if err := s.page.Navigate(ctx, SigninURL(s.opts.BaseURL)); err != nil {
		return fmt.Errorf("%w: open sign-in page: %v", ErrAuthentication, err)
	}

	steps := []struct {
		selector string
		value    string
	}{
		{EmailInput, email},
		{PasswordInput, password},
	}
	for _, step := range steps {
		if err := s.page.WaitVisible(ctx, step.selector, s.opts.Timeout); err != nil {
			return s.authError(step.selector, err)
		}
		if err := s.page.Fill(step.selector, step.value); err != nil {
			return fmt.Errorf("%w: fill %s: %v", ErrAuthentication, step.selector, err)
		}
		if err := s.page.Press(step.selector, "Enter"); err != nil {
			return fmt.Errorf("%w: submit %s: %v", ErrAuthentication, step.selector, err)
		}
	}

	if err := s.page.WaitVisible(ctx, SearchBox, s.opts.Timeout); err != nil {
		return s.authError(SearchBox, err)
	}

	s.logger.Info("login successful")
	return nil
}

func (s *Session) authError(selector string, cause error) error {
	if reason, blocked := s.CheckIfBlocked(); blocked {
		s.logger.Error("sign-in blocked, a captcha may need to be solved manually", "reason", reason)
		return fmt.Errorf("%w: %w (%s)", ErrAuthentication, ErrBlocked, reason)
	}
	return fmt.Errorf("%w: %s never appeared: %v", ErrAuthentication, selector, cause)
}

// CheckIfBlocked looks for captcha forms or a robot-check title.
func (s *Session) CheckIfBlocked() (string, bool) {
	for _, selector := range captchaSelectors {
		if els, err := s.page.Query(selector); err == nil && len(els) > 0 {
			return selector, true
		}
	}

	title, err := s.page.Title()
	if err == nil && strings.Contains(strings.ToLower(title), "robot") {
		return "title: " + title, true
	}
	return "", false
}

// Search submits term through the search box and waits for result cards.
func (s *Session) Search(ctx context.Context, term string) error {
	if err := s.page.WaitVisible(ctx, SearchBox, s.opts.Timeout); err != nil {
		return fmt.Errorf("search box: %w", err)
	}
	if err := s.page.Fill(SearchBox, term); err != nil {
		return fmt.Errorf("fill search box: %w", err)
	}
	if err := s.page.Press(SearchBox, "Enter"); err != nil {
		return fmt.Errorf("submit search: %w", err)
	}
	s.logger.Info("searching", "term", term)

	if err := s.page.WaitVisible(ctx, SearchResult, s.opts.Timeout); err != nil {
		if reason, blocked := s.CheckIfBlocked(); blocked {
			return fmt.Errorf("%w (%s)", ErrBlocked, reason)
		}
		return fmt.Errorf("search results: %w", err)
	}
	return nil
}

// Containers returns result containers that carry a non-empty ASIN.
func Containers(scope locator.Scope) ([]locator.Element, error) {
	all, err := scope.Query(ResultContainer)
	if err != nil {
		return nil, err
	}

	containers := make([]locator.Element, 0, len(all))
	for _, el := range all {
		asin, err := el.Attr("data-asin")
		if err != nil || strings.TrimSpace(asin) == "" {
			continue
		}
		containers = append(containers, el)
	}
	return containers, nil
}
