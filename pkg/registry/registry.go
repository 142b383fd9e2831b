// Package registry resolves service names into request/response descriptors
// and invocable call handles.  The tree/eval core never talks to a
// transport directly; it only sees this contract.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/opscall/opscall/pkg/describe"
	"github.com/opscall/opscall/pkg/message"
)

// ErrNotFound reports a service name the registry does not know.
var ErrNotFound = errors.New("service not found")

// SchemaError wraps a service whose schema could not be resolved.  Callers
// log it and omit the service rather than failing the whole listing.
type SchemaError struct {
	Service string
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema unavailable for %s: %v", e.Service, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// RemoteError reports a failed invocation.  It is surfaced as primary
// output, projected into the same tree shape as a successful response.
type RemoteError struct {
	Service string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("calling %s: %s", e.Service, e.Message)
}

// CallHandle invokes one resolved service.
type CallHandle interface {
	Invoke(ctx context.Context, req *message.Message) (*message.Message, error)
}

// Service is a resolved binding: name, both type descriptors, and the handle.
type Service struct {
	Name        string
	Description string
	Request     *describe.Descriptor
	Response    *describe.Descriptor
	Handle      CallHandle
}

// Registry enumerates and resolves services.
type Registry interface {
	// ListServiceNames returns the available service names, sorted.
	// Services whose schema cannot be resolved are omitted (and warned
	// about), not fatal.
	ListServiceNames(ctx context.Context) ([]string, error)
	// Resolve returns the binding for a service name.
	Resolve(ctx context.Context, name string) (*Service, error)
}

// HandleFunc adapts a function to CallHandle.
type HandleFunc func(ctx context.Context, req *message.Message) (*message.Message, error)

// Invoke implements CallHandle.
func (f HandleFunc) Invoke(ctx context.Context, req *message.Message) (*message.Message, error) {
	return f(ctx, req)
}
