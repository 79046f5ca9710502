// Package handler turns platform events into engine calls. The discord and
// telegram bindings only translate their events into messages and
// invocations; everything else happens here.
package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"guild-warden/internal/automod"
	"guild-warden/internal/crash"
	"guild-warden/internal/logger"
	"guild-warden/internal/models"
	"guild-warden/internal/notify"
	"guild-warden/internal/service"
)

const (
	// MaxConcurrentEvents bounds the events handled at the same time.
	MaxConcurrentEvents = 100
	eventTimeout        = 30 * time.Second
)

// Handler serves the events of one platform.
type Handler struct {
	services *service.Services
	engines  *service.Engines

	semaphore chan struct{}
	active    atomic.Int32
	wg        sync.WaitGroup
}

func New(services *service.Services, engines *service.Engines) *Handler {
	return &Handler{
		services:  services,
		engines:   engines,
		semaphore: make(chan struct{}, MaxConcurrentEvents),
	}
}

// ActiveHandlers is the number of events in flight.
func (h *Handler) ActiveHandlers() int {
	return int(h.active.Load())
}

// process runs fn with a fresh deadline once a slot is free. Panics in fn
// are logged and counted as errors.
func (h *Handler) process(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	select {
	case h.semaphore <- struct{}{}:
	case <-ctx.Done():
		incrementCounter(&totalTimeouts)
		logger.Warningf("Timed out waiting for a slot to handle %s", name)
		return
	}
	h.wg.Add(1)
	h.active.Add(1)
	defer func() {
		h.active.Add(-1)
		h.wg.Done()
		<-h.semaphore
	}()

	err := h.run(ctx, name, fn)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		incrementCounter(&totalTimeouts)
	}
	if err != nil {
		incrementCounter(&totalErrors)
		logger.Warningf("Error handling %s: %v", name, err)
	}
}

func (h *Handler) run(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer crash.RecoverError(name, &err)
	return fn(ctx)
}

// Wait blocks until every event in flight is handled or timeout elapses.
// It reports whether all events completed.
func (h *Handler) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// policy returns the guild policy, creating the default one for guilds seen
// for the first time.
func (h *Handler) policy(ctx context.Context, guildID, guildName string) (*models.GuildPolicy, error) {
	policy, err := h.services.Policies.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if policy != nil {
		return policy, nil
	}
	return h.services.Policies.EnsurePolicy(ctx, guildID, guildName)
}

// OnGuildAvailable makes sure a joined guild has a policy under its current name.
func (h *Handler) OnGuildAvailable(ctx context.Context, guildID, guildName string) error {
	incrementCounter(&totalGuildEvents)
	if _, err := h.services.Policies.EnsurePolicy(ctx, guildID, guildName); err != nil {
		return fmt.Errorf("failed to ensure policy of guild %s: %w", guildID, err)
	}
	return nil
}

// OnMessage runs auto-moderation on msg and, when the message survives,
// awards experience to its author.
func (h *Handler) OnMessage(ctx context.Context, msg *automod.Message, guildName string) error {
	incrementCounter(&totalMessagesProcessed)
	if msg.At.IsZero() {
		msg.At = time.Now()
	}

	policy, err := h.policy(ctx, msg.GuildID, guildName)
	if err != nil {
		return fmt.Errorf("failed to load policy of guild %s: %w", msg.GuildID, err)
	}

	res := h.services.Pipeline.Evaluate(ctx, policy, msg)
	if res.Delete {
		logger.Infof("Auto-mod %s hit message %s of %s in guild %s", res.Rule, msg.MessageID, msg.AuthorID, msg.GuildID)
		h.engines.Enforcer.Apply(ctx, policy, msg, res)
		return nil
	}

	if policy.IsChannelIgnored(msg.ChannelID) {
		return nil
	}
	event, err := h.services.Leveling.OnMessage(ctx, policy, msg.AuthorID, msg.At)
	if err != nil {
		return fmt.Errorf("failed to award experience: %w", err)
	}
	if event == nil {
		return nil
	}

	h.engines.Notifier.Dispatch(ctx, notify.Intent{
		Kind:      notify.ChannelNotice,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		UserID:    msg.AuthorID,
		Text:      notify.LevelUp(policy.Language, msg.AuthorMention, event.NewLevel),
		TTL:       h.services.Config.Leveling.NoticeTTL,
	})
	return nil
}
