// Package notifications publishes pipeline events to ntfy.
//
// NewService returns a no-op Service when no topic is configured, so callers
// never branch on whether alerts are enabled.
package notifications
