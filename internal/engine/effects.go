package engine

import (
	"time"

	"github.com/roach88/admincache/internal/cache"
)

// EffectKind names a side effect for the UI layer.
type EffectKind string

const (
	EffectNotify   EffectKind = "notify"
	EffectHide     EffectKind = "hide"
	EffectRedirect EffectKind = "redirect"
	EffectLogout   EffectKind = "logout"
)

// Effect is an instruction for the collaborators outside the cache: show or
// hide a notification, navigate, or end the session.
type Effect struct {
	Kind         EffectKind          `json:"kind"`
	Notification *cache.Notification `json:"notification,omitempty"`
	Path         string              `json:"path,omitempty"`
}

// Update is published after every processed action.
type Update struct {
	Action   string   `json:"action"`
	Resource string   `json:"resource,omitempty"`
	Token    string   `json:"token,omitempty"`
	Outcome  Outcome  `json:"outcome,omitempty"`
	Effects  []Effect `json:"effects,omitempty"`
}

// Observer receives updates synchronously on the engine goroutine. It must
// not block and must not call back into the engine's dispatch methods.
type Observer interface {
	Observe(Update)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Update)

// Observe calls f.
func (f ObserverFunc) Observe(u Update) { f(u) }

// Subscribe returns a channel receiving every update and a function that
// ends the subscription. Updates are dropped for a subscriber whose buffer
// is full; the state accessors remain the source of truth.
func (e *Engine) Subscribe(buffer int) (<-chan Update, func()) {
	ch := make(chan Update, max(buffer, 1))
	e.subsMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subsMu.Unlock()

	return ch, func() {
		e.subsMu.Lock()
		defer e.subsMu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
}

func (e *Engine) publish(u Update) {
	for _, obs := range e.observers {
		obs.Observe(u)
	}
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for id, ch := range e.subs {
		select {
		case ch <- u:
		default:
			e.logger.Debug("subscriber buffer full, update dropped", "subscriber", id, "action", u.Action)
		}
	}
}

func (e *Engine) closeSubscriptions() {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}

// notify stores a visible notification and schedules its auto-hide.
func (e *Engine) notify(key string, level cache.NotificationLevel, args map[string]any, autoHide time.Duration) Effect {
	if autoHide == 0 {
		autoHide = e.cfg.NotificationDuration
	}
	autoHide = max(autoHide, 0)
	n := cache.Notification{
		ID:       e.tokens.Generate(),
		Key:      key,
		Args:     args,
		Level:    level,
		AutoHide: autoHide,
	}
	e.state.ShowNotification(n)
	e.metrics.Notifications.WithLabelValues(string(level)).Inc()
	if autoHide > 0 {
		id := n.ID
		time.AfterFunc(autoHide, func() {
			e.queue.Enqueue(&hideNotificationAction{id: id})
		})
	}
	return Effect{Kind: EffectNotify, Notification: &n}
}

func redirect(path string) []Effect {
	if path == "" {
		return nil
	}
	return []Effect{{Kind: EffectRedirect, Path: path}}
}
