// Package notify delivers the notices produced by moderation decisions.
//
// Delivery is best effort: every intent is attempted once, failures are
// logged and counted but never returned to the caller. Channel notices with a
// TTL are removed again once it expires; the pending deletion is recorded so a
// restart still removes notices scheduled before it.
package notify

import (
	"context"
	"sync"
	"time"

	"guild-warden/internal/crash"
	"guild-warden/internal/logger"
	"guild-warden/internal/metrics"
	"guild-warden/internal/models"
	"guild-warden/internal/platform"
)

// Kind is the delivery channel of an intent.
type Kind int

const (
	DirectMessage Kind = iota
	ModLog
	ChannelNotice
)

func (k Kind) String() string {
	switch k {
	case DirectMessage:
		return "direct"
	case ModLog:
		return "modlog"
	case ChannelNotice:
		return "notice"
	}
	return "unknown"
}

// Intent is one notification to deliver.
type Intent struct {
	Kind      Kind
	GuildID   string
	ChannelID string
	UserID    string
	Text      string
	// TTL removes a channel notice after the given delay; zero keeps it.
	TTL time.Duration
}

// PendingStore persists scheduled notice deletions.
type PendingStore interface {
	AddPendingMsg(ctx context.Context, pm *models.PendingMessage) error
	RemovePendingMsg(ctx context.Context, platform, chatID, messageID string) error
	GetDuePendingMsgs(ctx context.Context, now time.Time) ([]models.PendingMessage, error)
}

const deleteTimeout = 10 * time.Second

type Dispatcher struct {
	messenger platform.Messenger
	platform  string
	pending   PendingStore
	now       func() time.Time

	// without a PendingStore scheduled deletions only live here
	memMu      sync.Mutex
	memPending []models.PendingMessage

	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

// NewDispatcher creates a dispatcher sending through messenger. pending may be
// nil, in which case scheduled deletions are only kept in memory.
func NewDispatcher(messenger platform.Messenger, platformName string, pending PendingStore) *Dispatcher {
	return &Dispatcher{
		messenger: messenger,
		platform:  platformName,
		pending:   pending,
		now:       time.Now,
		timers:    make(map[string]*time.Timer),
	}
}

// Dispatch delivers every intent once.
func (d *Dispatcher) Dispatch(ctx context.Context, intents ...Intent) {
	for _, intent := range intents {
		if err := d.send(ctx, intent); err != nil {
			metrics.NotificationsFailed.WithLabelValues(intent.Kind.String()).Inc()
			logger.Warningf("Failed to deliver %s notification in guild %s: %v", intent.Kind, intent.GuildID, err)
		}
	}
}

// DispatchAsync delivers intents on a separate goroutine.
func (d *Dispatcher) DispatchAsync(intents ...Intent) {
	if len(intents) == 0 {
		return
	}
	crash.SafeGoroutine("notify-dispatch", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		d.Dispatch(ctx, intents...)
	})
}

func (d *Dispatcher) send(ctx context.Context, intent Intent) error {
	switch intent.Kind {
	case DirectMessage:
		return d.messenger.SendDirect(ctx, intent.UserID, intent.Text)
	case ModLog, ChannelNotice:
		if intent.ChannelID == "" {
			return nil
		}
		messageID, err := d.messenger.SendChannel(ctx, intent.ChannelID, intent.Text)
		if err != nil {
			return err
		}
		if intent.TTL > 0 {
			d.schedule(ctx, intent.ChannelID, messageID, intent.TTL)
		}
	}
	return nil
}

func timerKey(chatID, messageID string) string {
	return chatID + "/" + messageID
}

// schedule records the deletion and arms a timer for it.
func (d *Dispatcher) schedule(ctx context.Context, chatID, messageID string, ttl time.Duration) {
	pm := models.PendingMessage{
		Platform:  d.platform,
		ChatID:    chatID,
		MessageID: messageID,
		DeleteAt:  d.now().Add(ttl),
	}
	if d.pending != nil {
		if err := d.pending.AddPendingMsg(ctx, &pm); err != nil {
			logger.Warningf("Failed to record pending deletion of message %s in %s: %v", messageID, chatID, err)
		}
	} else {
		d.memMu.Lock()
		d.memPending = append(d.memPending, pm)
		d.memMu.Unlock()
	}

	key := timerKey(chatID, messageID)
	timer := time.AfterFunc(ttl, func() {
		defer crash.RecoverWithStack("notify-expire")
		ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
		defer cancel()
		d.expire(ctx, chatID, messageID)
	})
	d.timersMu.Lock()
	d.timers[key] = timer
	d.timersMu.Unlock()
}

// expire deletes a scheduled notice and forgets its pending record.
func (d *Dispatcher) expire(ctx context.Context, chatID, messageID string) {
	d.timersMu.Lock()
	delete(d.timers, timerKey(chatID, messageID))
	d.timersMu.Unlock()

	if err := d.messenger.DeleteMessage(ctx, chatID, messageID); err != nil {
		logger.Debugf("Failed to delete notice %s in %s: %v", messageID, chatID, err)
	}

	if d.pending != nil {
		if err := d.pending.RemovePendingMsg(ctx, d.platform, chatID, messageID); err != nil {
			logger.Warningf("Failed to remove pending deletion of message %s in %s: %v", messageID, chatID, err)
		}
		return
	}

	d.memMu.Lock()
	defer d.memMu.Unlock()
	for i, pm := range d.memPending {
		if pm.ChatID == chatID && pm.MessageID == messageID {
			d.memPending = append(d.memPending[:i], d.memPending[i+1:]...)
			break
		}
	}
}

// FlushPending deletes every scheduled notice whose time has come, including
// the ones left over from a previous run. It returns how many were handled.
func (d *Dispatcher) FlushPending(ctx context.Context) int {
	now := d.now()

	var due []models.PendingMessage
	if d.pending != nil {
		msgs, err := d.pending.GetDuePendingMsgs(ctx, now)
		if err != nil {
			logger.Warningf("Failed to load pending deletions: %v", err)
			return 0
		}
		for _, pm := range msgs {
			if pm.Platform == d.platform {
				due = append(due, pm)
			}
		}
	} else {
		d.memMu.Lock()
		for _, pm := range d.memPending {
			if !pm.DeleteAt.After(now) {
				due = append(due, pm)
			}
		}
		d.memMu.Unlock()
	}

	for _, pm := range due {
		d.stopTimer(pm.ChatID, pm.MessageID)
		d.expire(ctx, pm.ChatID, pm.MessageID)
	}
	if len(due) > 0 {
		logger.Infof("Deleted %d pending %s notices", len(due), d.platform)
	}
	return len(due)
}

// DeleteAllPending removes every notice still scheduled, used on shutdown when
// pending deletions are not persisted.
func (d *Dispatcher) DeleteAllPending(ctx context.Context) int {
	if d.pending != nil {
		return 0
	}
	d.memMu.Lock()
	all := make([]models.PendingMessage, len(d.memPending))
	copy(all, d.memPending)
	d.memMu.Unlock()

	for _, pm := range all {
		d.stopTimer(pm.ChatID, pm.MessageID)
		d.expire(ctx, pm.ChatID, pm.MessageID)
	}
	return len(all)
}

func (d *Dispatcher) stopTimer(chatID, messageID string) {
	key := timerKey(chatID, messageID)
	d.timersMu.Lock()
	defer d.timersMu.Unlock()
	if t, ok := d.timers[key]; ok {
		t.Stop()
		delete(d.timers, key)
	}
}
