package authcore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// NotificationChannel selects the delivery medium.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
)

// Notification is one outbound message: a template name plus variables,
// addressed to a single recipient.
type Notification struct {
	ID        string
	Channel   NotificationChannel
	Recipient string
	Template  string
	Vars      map[string]string
}

// Templates the engine submits. Senders map them to concrete subject
// lines and bodies.
const (
	TemplateUserRegistered = "user_registered"
	TemplateVerifyEmail    = "verify_email"
	TemplateVerifySMS      = "verify_sms"
	TemplateLoginOTP       = "login_otp"
	TemplateResetOTP       = "reset_otp"
)

// NotificationSender delivers one notification. Send is invoked from the
// dispatcher goroutine; errors are counted, never propagated to flows.
type NotificationSender interface {
	Send(ctx context.Context, n Notification) error
}

// notifyDispatcher is the fire-and-forget outbound queue. Flows submit
// and move on; delivery failure never fails the parent operation.
type notifyDispatcher struct {
	sender    NotificationSender
	ch        chan Notification
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newNotifyDispatcher(cfg NotifyConfig, sender NotificationSender) *notifyDispatcher {
	if sender == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	d := &notifyDispatcher{
		sender: sender,
		ch:     make(chan Notification, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *notifyDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case n := <-d.ch:
			d.deliver(n)
		case <-d.done:
			for {
				select {
				case n := <-d.ch:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *notifyDispatcher) deliver(n Notification) {
	if err := d.sender.Send(context.Background(), n); err != nil {
		d.failed.Add(1)
	}
}

// Submit enqueues a notification without blocking. A full buffer drops
// the message and increments the drop counter.
func (d *notifyDispatcher) Submit(n Notification) {
	if d == nil || d.closed.Load() {
		return
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	select {
	case d.ch <- n:
	case <-d.done:
	default:
		d.dropped.Add(1)
	}
}

// Close drains queued notifications and stops the delivery goroutine.
func (d *notifyDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *notifyDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *notifyDispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
