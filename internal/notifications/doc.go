// Package notifications pushes session faults to an ntfy topic.
//
// Events map to a title, message, and tag set. Each fault class has a toggle
// in the [notifications] config section; disabled classes and a missing topic
// both degrade to a no-op so callers never need to check.
package notifications
