// Package notifications delivers push notifications for batch milestones.
//
// The service is backed by ntfy when a topic is configured and degrades to a
// noop implementation otherwise, so callers never need to branch on
// configuration.
package notifications
