// Package dismiss decides whether outlier warnings are shown, and records a
// user's decision to dismiss one.
//
// Two contracts exist. TTLCache keeps the dismissal on the client for a
// bounded period; ServerConfirmed asks the server to drop the warning for
// good. A process builds exactly one of them and treats it as the only source
// of truth.
package dismiss

import (
	"context"
	"errors"
	"time"
)

const (
	VariantTTL    = "ttl"
	VariantServer = "server"
)

var (
	// ErrNotFound is returned by a Store for absent keys.
	ErrNotFound = errors.New("dismissal record not found")
	// ErrDeclined means the user did not confirm the dismissal.
	ErrDeclined = errors.New("dismissal not confirmed")
	// ErrNoPending means ConfirmPending was called with no open request.
	ErrNoPending = errors.New("no dismissal pending")
	// ErrRejected means the server answered the dismiss call with success=false.
	ErrRejected = errors.New("server rejected dismissal")
	// ErrNotListable means the store cannot enumerate its keys.
	ErrNotListable = errors.New("store cannot list keys")
)

// Store is the client-local persisted key/value store. Writes are single-key
// and last-writer-wins.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}

// View hides the warning element for outlierID.
type View interface {
	Hide(outlierID string)
}

// Confirmer asks the user to confirm an action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// Notifier shows the user an alert.
type Notifier interface {
	Alert(message string)
}

// Reloader reloads the whole view from the server.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Overlays controls the hover overlay bound to an outlier warning.
type Overlays interface {
	Hide(outlierID string)
	Dispose(outlierID string)
}

// Dismisser is the contract both variants satisfy.
type Dismisser interface {
	IsDismissed(ctx context.Context, outlierID string) bool
	Dismiss(ctx context.Context, outlierID string) error
	Variant() string
}

// Apply checks every id once, as on page load, and hides the dismissed ones.
// It returns the ids that were hidden.
func Apply(ctx context.Context, d Dismisser, view View, ids []string) []string {
	var hidden []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if d.IsDismissed(ctx, id) {
			if view != nil {
				view.Hide(id)
			}
			hidden = append(hidden, id)
		}
	}
	return hidden
}

// AutoConfirm accepts every prompt. Use it where the caller's request is
// itself the confirmation.
type AutoConfirm struct{}

func (AutoConfirm) Confirm(context.Context, string) bool { return true }

// ConfirmPrompt is the text shown before a dismissal.
func ConfirmPrompt(outlierID string) string {
	return "Remove the outlier warning " + outlierID + "?"
}
