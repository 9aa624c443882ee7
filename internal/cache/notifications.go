package cache

import (
	"slices"
	"time"
)

// NotificationLevel is the severity of a notification.
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelWarning NotificationLevel = "warning"
)

// Notification is an abstract user message. Key is resolved by the
// translation layer; the cache never formats user-facing text.
type Notification struct {
	ID       string            `json:"id"`
	Key      string            `json:"key"`
	Args     map[string]any    `json:"args,omitempty"`
	Level    NotificationLevel `json:"level"`
	AutoHide time.Duration     `json:"autoHide"`
}

func (s *State) showNotification(n Notification) {
	s.notifications = append(s.notifications, n)
}

func (s *State) hideNotification(id string) bool {
	before := len(s.notifications)
	s.notifications = slices.DeleteFunc(s.notifications, func(n Notification) bool {
		return n.ID == id
	})
	return len(s.notifications) != before
}

// ShowNotification adds a visible notification.
func (s *State) ShowNotification(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showNotification(n)
}

// HideNotification removes the notification with the given id. It reports
// whether the notification was still visible.
func (s *State) HideNotification(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hideNotification(id)
}

// Notifications returns the visible notifications, oldest first.
func (s *State) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.notifications)
}
