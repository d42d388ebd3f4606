// Package errors defines the error taxonomy shared by the injection
// resolver, the middleware chain, and the execution engine.
package errors

import (
	sterrors "errors"
	"fmt"
	"strings"
)

var (
	ErrEngineRequired       = sterrors.New("sockwire: engine is required")
	ErrHandlerRequired      = sterrors.New("sockwire: handler function is required")
	ErrEventNameRequired    = sterrors.New("sockwire: event name is required")
	ErrHandlerNotFunc       = sterrors.New("sockwire: handler must be a function")
	ErrProviderNotFunc      = sterrors.New("sockwire: provider must be a function")
	ErrProviderNoResult     = sterrors.New("sockwire: provider must return a value")
	ErrProviderBadRelease   = sterrors.New("sockwire: provider release must be func() or func() error")
	ErrNameRequired         = sterrors.New("sockwire: dependency name is required")
	ErrDuplicateProvider    = sterrors.New("sockwire: provider already registered")
	ErrRegistrySealed       = sterrors.New("sockwire: registry is sealed, register providers before dispatch begins")
	ErrDuplicateHandler     = sterrors.New("sockwire: handler already registered for event")
	ErrTooManyModelParams   = sterrors.New("sockwire: handler declares more than one schema parameter")
	ErrMiddlewareNoHooks    = sterrors.New("sockwire: middleware unit requires a hook")
	ErrInvocationCancelled  = sterrors.New("sockwire: invocation cancelled")
	ErrMultiArgumentPayload = sterrors.New("sockwire: schema handlers accept a single payload argument")
)

// CyclicDependencyError reports that a provider transitively depends on
// itself within a single invocation. Chain lists the provider names
// from the first repeated provider back to itself.
type CyclicDependencyError struct {
	Chain []string
}

func (e *CyclicDependencyError) Error() string {
	return "sockwire: cyclic dependency: " + strings.Join(e.Chain, " -> ")
}

// UnresolvedDependencyError reports a name-referenced dependency with
// no registered provider.
type UnresolvedDependencyError struct {
	Name string
}

func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("sockwire: no provider registered for dependency %q", e.Name)
}

// SyncAsyncMismatchError reports a suspending (context-taking) provider
// resolved under the parallel execution model.
type SyncAsyncMismatchError struct {
	Provider string
}

func (e *SyncAsyncMismatchError) Error() string {
	return fmt.Sprintf("sockwire: suspending provider %s cannot run in parallel mode", e.Provider)
}

// AuthNotAvailableError reports an Auth parameter requested outside the
// connect handler.
type AuthNotAvailableError struct {
	Event string
}

func (e *AuthNotAvailableError) Error() string {
	return fmt.Sprintf("sockwire: auth is only available in the connect handler, not %q", e.Event)
}

// ReasonNotAvailableError reports a Reason parameter requested outside
// the disconnect handler.
type ReasonNotAvailableError struct {
	Event string
}

func (e *ReasonNotAvailableError) Error() string {
	return fmt.Sprintf("sockwire: reason is only available in the disconnect handler, not %q", e.Event)
}

// ValidationError reports a payload that does not conform to the
// handler's declared schema, or a payload shape the schema cannot
// accept at all (for example several positional arguments).
type ValidationError struct {
	Schema string
	Cause  error
}

func (e *ValidationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("sockwire: payload failed validation for %s", e.Schema)
	}
	return fmt.Sprintf("sockwire: payload failed validation for %s: %v", e.Schema, e.Cause)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// Abort is returned by a middleware before-hook to stop the chain
// before the handler runs. Response, when non-nil, is handed back to
// the dispatcher as the invocation result.
type Abort struct {
	Reason   string
	Response any
}

func (e *Abort) Error() string {
	if e.Reason == "" {
		return "sockwire: middleware aborted the invocation"
	}
	return "sockwire: middleware aborted the invocation: " + e.Reason
}

// IsAbort reports whether err is (or wraps) a middleware abort.
func IsAbort(err error) bool {
	var a *Abort
	return sterrors.As(err, &a)
}

// IsCyclicDependency reports whether err is a cycle failure.
func IsCyclicDependency(err error) bool {
	var e *CyclicDependencyError
	return sterrors.As(err, &e)
}

// IsValidation reports whether err is a payload validation failure.
func IsValidation(err error) bool {
	var e *ValidationError
	return sterrors.As(err, &e)
}
