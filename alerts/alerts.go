// Package alerts holds the process-wide last-error state consumed by the UI
// alert component. Errors from any service flow through a Surface, are
// classified into a displayable record, and stay pending until acknowledged.
package alerts

import (
	"errors"
	"strings"
	"sync"
)

// Coded is implemented by service errors carrying a technical code with a
// service prefix, e.g. "auth/wrong-password" or "firestore/not-found".
type Coded interface {
	error
	ErrorCode() string
}

// Display is the record the UI shows for a pending error.
type Display struct {
	Title   string
	Message string
	Code    string
	Details string
}

// Option adjusts how Handle builds the display record.
type Option func(*handleOptions)

type handleOptions struct {
	userMessage string
}

// WithUserMessage overrides the displayed message.
func WithUserMessage(message string) Option {
	return func(o *handleOptions) { o.userMessage = message }
}

// Surface is the last-error slot. At most one error is pending; a new Handle
// call overwrites any unacknowledged prior error.
type Surface struct {
	mu      sync.Mutex
	raw     error
	display *Display
}

// New creates an empty surface.
func New() *Surface {
	return &Surface{}
}

// Handle classifies err and makes it the pending error. A nil err is ignored.
func (s *Surface) Handle(err error, opts ...Option) {
	if err == nil {
		return
	}
	var o handleOptions
	for _, opt := range opts {
		opt(&o)
	}

	display := classify(err, o)

	s.mu.Lock()
	s.raw = err
	s.display = &display
	s.mu.Unlock()
}

// Clear acknowledges the pending error.
func (s *Surface) Clear() {
	s.mu.Lock()
	s.raw = nil
	s.display = nil
	s.mu.Unlock()
}

// HasError reports whether an error is pending.
func (s *Surface) HasError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.display != nil
}

// Current returns a copy of the pending display record, or nil.
func (s *Surface) Current() *Display {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.display == nil {
		return nil
	}
	display := *s.display
	return &display
}

// Err returns the raw pending error for diagnostic use.
func (s *Surface) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

func classify(err error, o handleOptions) Display {
	var coded Coded
	if errors.As(err, &coded) {
		code := coded.ErrorCode()
		service, _, _ := strings.Cut(code, "/")

		title := "Service Error"
		switch service {
		case "auth":
			title = "Authentication Error"
		case "firestore":
			title = "Database Error"
		case "storage":
			title = "Storage Error"
		}

		message := o.userMessage
		if message == "" {
			message = friendlyMessage(code)
		}
		if message == "" {
			message = coded.Error()
		}
		return Display{
			Title:   title,
			Message: message,
			Code:    code,
			Details: coded.Error(),
		}
	}

	message := o.userMessage
	if message == "" {
		message = err.Error()
	}
	if message == "" {
		message = "Something went wrong."
	}
	return Display{
		Title:   "An Error Occurred",
		Message: message,
		Details: err.Error(),
	}
}
