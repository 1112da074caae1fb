package browser

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDialog struct {
	playwright.Dialog
	dismissed chan struct{}
}

func (d *fakeDialog) Dismiss() error {
	close(d.dismissed)
	return nil
}

// fakeDialogPage raises one dialog per Evaluate and, unless acknowledge is
// set, blocks until it is dismissed.
type fakeDialogPage struct {
	mu          sync.Mutex
	listeners   int
	removed     []string
	acknowledge bool
	handler     func(playwright.Dialog)
}

func (p *fakeDialogPage) OnDialog(fn func(playwright.Dialog)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners++
	p.handler = fn
}

func (p *fakeDialogPage) RemoveListener(name string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners--
	p.removed = append(p.removed, name)
}

func (p *fakeDialogPage) Evaluate(string, ...interface{}) (interface{}, error) {
	p.mu.Lock()
	handler := p.handler
	p.mu.Unlock()

	d := &fakeDialog{dismissed: make(chan struct{})}
	handler(d)
	if !p.acknowledge {
		<-d.dismissed
	}
	return nil, nil
}

func (p *fakeDialogPage) state() (int, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listeners, append([]string(nil), p.removed...)
}

func TestNotifyRemovesDialogListener(t *testing.T) {
	tests := []struct {
		name        string
		acknowledge bool
		timeout     time.Duration
		wantErr     error
	}{
		{name: "acknowledged", acknowledge: true, timeout: time.Second},
		{name: "timed out", timeout: 20 * time.Millisecond, wantErr: ErrNotificationTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := &fakeDialogPage{acknowledge: tt.acknowledge}

			for i := 0; i < 3; i++ {
				err := notify(context.Background(), page, "Proceed to payment", tt.timeout)
				if tt.wantErr != nil {
					require.ErrorIs(t, err, tt.wantErr)
				} else {
					require.NoError(t, err)
				}
			}

			listeners, removed := page.state()
			assert.Zero(t, listeners, "no dialog handler outlives its notification")
			assert.Equal(t, []string{"dialog", "dialog", "dialog"}, removed)
		})
	}
}
