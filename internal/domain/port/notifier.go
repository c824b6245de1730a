package port

import "context"

// Notifier delivers lifecycle notifications to a fixed destination.
// Best effort: delivery failure never fails an inspection run.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}
