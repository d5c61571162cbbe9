package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"loyalty-points/internal/domain"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Notifier delivers a points-received notice on one channel. Implementations
// live outside the core; delivery failures are reported through the returned
// error and never affect the transaction that triggered them.
type Notifier interface {
	Notify(ctx context.Context, channel Channel, account *domain.Account, pointsAmount, balance decimal.Decimal) error
}

// LogNotifier writes the notice to the log instead of delivering it. It
// stands in for the real email sender and for the SMS component that does not
// exist yet.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, channel Channel, account *domain.Account, pointsAmount, balance decimal.Decimal) error {
	n.Logger.Info("You received loyalty points",
		"channel", string(channel),
		"account_id", account.ID,
		"points_amount", pointsAmount,
		"balance", balance)
	return nil
}

// Dispatcher decides which channels apply to an account and hands delivery to
// the Notifier asynchronously. The write path calls Dispatch and moves on; a
// slow or broken notifier can neither block nor fail the transaction response.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewDispatcher(notifier Notifier, logger *slog.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		notifier: notifier,
		logger:   logger,
		timeout:  timeout,
	}
}

// Dispatch fires notifications for the deposited points. Channel gating:
// email goes out only when the account has an email and opted in; same for
// phone. Returns immediately.
func (d *Dispatcher) Dispatch(account *domain.Account, pointsAmount, balance decimal.Decimal) {
	if account.Email != "" && account.EmailNotification {
		d.send(ChannelEmail, account, pointsAmount, balance)
	}
	if account.Phone != "" && account.PhoneNotification {
		d.send(ChannelSMS, account, pointsAmount, balance)
	}
}

func (d *Dispatcher) send(channel Channel, account *domain.Account, pointsAmount, balance decimal.Decimal) {
	acc := *account
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.notifier.Notify(ctx, channel, &acc, pointsAmount, balance); err != nil {
			d.logger.Error("Notification delivery failed",
				"code", "notification_failure",
				"channel", string(channel),
				"account_id", acc.ID,
				"error", err)
		}
	}()
}

// Wait blocks until all in-flight notifications finish. Used by tests and
// graceful shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
