package model

// Notifier defines a generic interface for sending notifications.
type Notifier interface {
	// Send delivers an HTML body under subject.
	Send(subject, htmlBody string) error
}
