// Package notifications announces batch run outcomes over ntfy.
//
// When no topic is configured NewService returns a no-op implementation, so
// callers never check whether notifications are enabled.
package notifications
