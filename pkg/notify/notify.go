// Package notify delivers optional post-scrape notifications, e.g. a
// Slack message when a scrape run turns up mics not yet in the store.
// Delivery is fire-and-forget from the scrape's point of view.
package notify

import (
	"context"
	"errors"
	"fmt"

	"mictrack/pkg/scraper"
)

// Notification summarizes one scrape run for delivery.
type Notification struct {
	Title   string        `json:"title"`
	Body    string        `json:"body"`
	Sources []string      `json:"sources"`
	NewMics []scraper.Mic `json:"new_mics"`
}

// Notifier delivers notifications to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new notification manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
