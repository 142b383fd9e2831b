// Package session owns the active service binding: the projected request
// tree, the sparse expression map keyed by path, and the counter exposed to
// expressions as `i`.  A session is replaced wholesale when the selection
// changes; operations are serialized, one in flight at a time.
package session

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/opscall/opscall/pkg/archive"
	"github.com/opscall/opscall/pkg/eval"
	"github.com/opscall/opscall/pkg/message"
	"github.com/opscall/opscall/pkg/rebuild"
	"github.com/opscall/opscall/pkg/registry"
	"github.com/opscall/opscall/pkg/tree"
)

// Session is the active binding for one selected service.
type Session struct {
	mu       sync.Mutex
	service  *registry.Service
	root     *tree.Node
	exprs    map[string]string
	counter  int
	lastResp *message.Message
}

// New resolves a service and projects its default request as an editable
// tree.
func New(ctx context.Context, reg registry.Registry, name string) (*Session, error) {
	svc, err := reg.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Session{
		service: svc,
		root:    tree.ProjectRoot(svc.Name, message.New(svc.Request), true),
		exprs:   make(map[string]string),
	}, nil
}

// Service returns the resolved binding.
func (s *Session) Service() *registry.Service { return s.service }

// Tree returns the current request tree snapshot.
func (s *Session) Tree() *tree.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Counter returns the session counter.
func (s *Session) Counter() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

// SetCounter sets the value expressions see as `i`.  The core never
// increments it on its own.
func (s *Session) SetCounter(n int) error {
	if n < 0 {
		return fmt.Errorf("counter must be non-negative, got %d", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter = n
	return nil
}

// SetExpression records expression text against a leaf path and updates the
// node's display.  Only paths that exist as editable leaves in the current
// tree are accepted; the map stays sparse — untouched leaves never appear.
func (s *Session) SetExpression(path, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.root.Find(path)
	if node == nil {
		return fmt.Errorf("no node at path %s", path)
	}
	if !node.Editable {
		return fmt.Errorf("node %s is not editable", path)
	}
	node.Expression = text
	s.exprs[path] = text
	return nil
}

// Expressions returns a copy of the sparse expression map.
func (s *Session) Expressions() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.exprs))
	for k, v := range s.exprs {
		out[k] = v
	}
	return out
}

// BuildRequest reconstructs the request message from the expression map.
// Reconstruction walks a snapshot: front-ends may edit expressions while a
// call built from an earlier snapshot is still in flight.
func (s *Session) BuildRequest() (*message.Message, []eval.Diagnostic) {
	s.mu.Lock()
	exprs := make(map[string]string, len(s.exprs))
	for k, v := range s.exprs {
		exprs[k] = v
	}
	counter := s.counter
	s.mu.Unlock()
	return rebuild.FromExpressions(s.service.Request, s.service.Name, exprs, counter)
}

// Call reconstructs the request, invokes the service, and projects the
// response read-only.  A failed remote call still yields a tree — the error
// rendered in the same node shape as a response — plus the error itself.
// Callers supply the timeout through ctx; an unresponsive remote would
// otherwise stall the session indefinitely.
func (s *Session) Call(ctx context.Context) (*tree.Node, []eval.Diagnostic, error) {
	req, diags := s.BuildRequest()
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "session: %s\n", d)
	}

	resp, err := s.service.Handle.Invoke(ctx, req)
	s.mu.Lock()
	s.lastResp = resp
	s.mu.Unlock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "session: error calling service %q: %v\n", s.service.Name, err)
		return tree.ErrorTree(errorTypeName(err), err.Error()), diags, err
	}
	return tree.ProjectRoot(s.service.Name, resp, false), diags, nil
}

// Response returns the message from the most recent successful call, or nil
// before the first call and after a failed one.  Callers that need typed
// response values (JSON output) read it here; the projected tree only
// carries display strings.
func (s *Session) Response() *message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResp
}

// AddArrayElement appends a default-constructed element to the array node
// at path.  The expression map is not touched.
func (s *Session) AddArrayElement(path string) (*tree.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.root.Find(path)
	if node == nil {
		return nil, fmt.Errorf("no node at path %s", path)
	}
	return tree.AddArrayChild(node)
}

// RemoveArrayElement reports the declared-but-unsupported removal action.
func (s *Session) RemoveArrayElement(path string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.root.Find(path)
	if node == nil {
		return fmt.Errorf("no node at path %s", path)
	}
	return tree.RemoveArrayChild(node, index)
}

// SaveRequest reconstructs the current request and appends it to the
// archive container at path under label.
func (s *Session) SaveRequest(path, label string) error {
	req, diags := s.BuildRequest()
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "session: %s\n", d)
	}
	return archive.Write(path, label, req)
}

// LoadRequest loads the first archive entry matching label (or the first
// entry when label is empty) into the session.  The entry's declared type
// must match the request type; a mismatch is reported and leaves the
// session untouched.  On success the request tree is re-projected from the
// loaded message and every leaf value becomes an expression, so the next
// call reproduces the loaded request.
func (s *Session) LoadRequest(path, label string) error {
	entries, err := archive.Read(path)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if label != "" && e.Label != label {
			continue
		}
		msg, err := archive.Materialize(e, s.service.Request)
		if err != nil {
			return err
		}
		s.adopt(msg)
		return nil
	}
	return fmt.Errorf("no entry %q in %s", label, path)
}

// adopt replaces the tree and expression map with a projected message.
func (s *Session) adopt(msg *message.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.root = tree.ProjectRoot(s.service.Name, msg, true)
	s.exprs = make(map[string]string)
	for _, leaf := range s.root.Leaves() {
		if leaf.Desc != nil && leaf.Desc.IsPrimitive() {
			s.exprs[leaf.Path] = leaf.Expression
		}
	}
}

func errorTypeName(err error) string {
	switch err.(type) {
	case *registry.RemoteError:
		return "registry.RemoteError"
	case *registry.SchemaError:
		return "registry.SchemaError"
	default:
		return fmt.Sprintf("%T", err)
	}
}

// ListAvailable returns the registry's service names, filtering out (with a
// warning) any whose schema cannot be resolved, so pickers only offer
// usable services.
func ListAvailable(ctx context.Context, reg registry.Registry) ([]string, error) {
	names, err := reg.ListServiceNames(ctx)
	if err != nil {
		return nil, err
	}
	usable := names[:0]
	for _, name := range names {
		if _, err := reg.Resolve(ctx, name); err != nil {
			fmt.Fprintf(os.Stderr, "session: could not resolve service %s: %v\n", name, err)
			continue
		}
		usable = append(usable, name)
	}
	return usable, nil
}
