package browser

import (
	"context"
	"errors"
	"time"

	"github.com/playwright-community/playwright-go"
)

var ErrNotificationTimeout = errors.New("notification was not dismissed in time")

const (
	alertScript = `msg => alert(msg)`
	dialogEvent = "dialog"
)

// dialogPage is the part of playwright.Page that Notify drives.
type dialogPage interface {
	OnDialog(fn func(playwright.Dialog))
	RemoveListener(name string, handler interface{})
	Evaluate(expression string, arg ...interface{}) (interface{}, error)
}

// Notify shows a native alert and blocks until the user dismisses it or
// timeout passes, in which case the alert is dismissed programmatically.
func (p *Page) Notify(ctx context.Context, message string, timeout time.Duration) error {
	return notify(ctx, p.page, message, timeout)
}

func notify(ctx context.Context, page dialogPage, message string, timeout time.Duration) error {
	dialogs := make(chan playwright.Dialog, 1)
	handler := func(d playwright.Dialog) {
		select {
		case dialogs <- d:
		default:
		}
	}
	page.OnDialog(handler)
	defer page.RemoveListener(dialogEvent, handler)

	done := make(chan error, 1)
	go func() {
		_, err := page.Evaluate(alertScript, message)
		done <- err
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		dismiss(dialogs)
		return ErrNotificationTimeout
	case <-ctx.Done():
		dismiss(dialogs)
		return ctx.Err()
	}
}

func dismiss(dialogs <-chan playwright.Dialog) {
	select {
	case d := <-dialogs:
		d.Dismiss()
	default:
	}
}
