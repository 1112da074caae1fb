package session

import (
	"log/slog"

	"github.com/maltedev/amazon-cart-agent/internal/locator"
)

const (
	cookieAccept = "#sp-cc-accept"
	dialogClose  = "button.a-button-close, button[aria-label*='close'], button[aria-label*='Close']"
)

// DismissOverlays clicks the cookie banner and any dialog close buttons. It
// returns how many were clicked; failures are ignored.
func DismissOverlays(scope locator.Scope, logger *slog.Logger) int {
	dismissed := 0

	if els, err := scope.Query(cookieAccept); err == nil && len(els) > 0 {
		if err := els[0].PointerClick(); err == nil {
			dismissed++
		} else {
			logger.Debug("cookie banner click failed", "error", err)
		}
	}

	if els, err := scope.Query(dialogClose); err == nil {
		for _, el := range els {
			if err := el.PointerClick(); err != nil {
				continue
			}
			dismissed++
		}
	}

	if dismissed > 0 {
		logger.Info("dismissed overlays", "count", dismissed)
	}
	return dismissed
}
