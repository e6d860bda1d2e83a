// Package settlement tracks a single payment transaction from creation to a
// terminal status. Pushed status changes, the expiry deadline and the
// post-settlement navigation delay are reconciled through one reducer, so the
// racing inputs of the old dialog (socket handler vs. interval callbacks)
// cannot disagree about the outcome.
package settlement

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"libra-pay/internal/domain"
)

// DefaultNavigatePath is where the client is sent once the navigation
// countdown expires.
const DefaultNavigatePath = "/management/borrow-requests"

// Navigator is the navigation sink invoked when settlement completes.
type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

type Options struct {
	Clock     Clock
	Navigator Navigator
	// Path overrides DefaultNavigatePath when non-empty.
	Path   string
	Logger *zap.Logger
}

// Watcher owns the PaymentState for one payment attempt. All mutations flow
// through Run's event loop; OfferStatus only enqueues.
type Watcher struct {
	clock  Clock
	nav    Navigator
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	state   domain.PaymentState
	session *domain.PaymentSession

	events chan Event
	done   chan struct{}
}

func New(opts Options) *Watcher {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Path == "" {
		opts.Path = DefaultNavigatePath
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Watcher{
		clock:  opts.Clock,
		nav:    opts.Navigator,
		path:   opts.Path,
		logger: opts.Logger,
		state:  domain.NewPaymentState(),
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
}

// Seed initialises the watcher from an existing transaction. A record that is
// already terminal puts the watcher straight into that terminal state and the
// navigation countdown starts on the next tick; AWAITING_PAYMENT is skipped
// entirely. LeftTime is not re-derived for an already-expired record.
func (w *Watcher) Seed(tx *domain.Transaction) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.session = &domain.PaymentSession{
		QRCode:      tx.QRCode,
		Description: tx.Description,
		ExpiredAt:   tx.ExpiredAt,
	}
	w.state = domain.NewPaymentState()
	if tx.Status.Terminal() {
		w.state.Status = tx.Status
		w.state.CanNavigate = true
		return
	}
	if tx.ExpiredAt != nil {
		if left := tx.ExpiredAt.Sub(w.clock.Now()); left > 0 {
			w.state.LeftTime = left
		}
	}
}

// AttachSession installs a fresh payable session, replacing any previous one
// along with its countdown state. It is a no-op once the state is terminal.
func (w *Watcher) AttachSession(sess *domain.PaymentSession) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state.CanNavigate {
		return
	}
	w.session = sess
	w.state = domain.NewPaymentState()
	if sess.ExpiredAt != nil {
		if left := sess.ExpiredAt.Sub(w.clock.Now()); left > 0 {
			w.state.LeftTime = left
		}
	}
}

// OfferStatus enqueues a pushed status change. It never blocks after the
// watcher has stopped.
func (w *Watcher) OfferStatus(st domain.TransactionStatus) {
	select {
	case w.events <- StatusEvent{Status: st}:
	case <-w.done:
	}
}

// State returns a snapshot of the current PaymentState.
func (w *Watcher) State() domain.PaymentState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Done is closed when the event loop has exited. No effect runs after it.
func (w *Watcher) Done() <-chan struct{} { return w.done }

// Run drives the watcher until navigation fires or ctx is cancelled. The
// ticker is stopped unconditionally on exit, so no tick is delivered after
// teardown.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.done)

	ticker := w.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			if w.apply(Tick{Now: now}) == EffectNavigate {
				w.navigate()
				return
			}
		case ev := <-w.events:
			if w.apply(ev) == EffectNavigate {
				w.navigate()
				return
			}
		}
	}
}

func (w *Watcher) apply(ev Event) Effect {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.state
	next, eff := Reduce(prev, w.session, ev)
	w.state = next
	if prev.Status != next.Status {
		w.logger.Info("payment status changed",
			zap.String("from", string(prev.Status)),
			zap.String("to", string(next.Status)))
	}
	return eff
}

func (w *Watcher) navigate() {
	if w.nav == nil {
		return
	}
	w.logger.Info("settlement complete, navigating", zap.String("path", w.path))
	w.nav.Navigate(w.path)
}
