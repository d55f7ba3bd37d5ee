package verify

import "github.com/icloud-dedupe/icloud-dedupe/internal/events"

// Options configures a Verifier run.
type Options struct {
	Workers      int
	ShowProgress bool
	ErrCh        chan error
	Bus          *events.Bus // optional; nil disables event publishing
}
