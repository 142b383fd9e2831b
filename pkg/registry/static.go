package registry

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/opscall/opscall/pkg/describe"
	"github.com/opscall/opscall/pkg/message"
)

// Static is an in-process registry.  Services register Go structs for their
// request/response types; descriptors are derived by schema reflection.
// Handy for tests and for the built-in demo services.
type Static struct {
	mu       sync.Mutex
	services map[string]*Service
}

// NewStatic returns an empty in-process registry.
func NewStatic() *Static {
	return &Static{services: make(map[string]*Service)}
}

// Register adds a service.  reqType and respType are pointers to Go structs;
// reflection failures skip the service with a warning, mirroring how broken
// remote schemas degrade.
func (s *Static) Register(name, description string, reqType, respType any, handle CallHandle) error {
	req, err := describe.Reflect(reqType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "registry: skipping %s: %v\n", name, err)
		return &SchemaError{Service: name, Err: err}
	}
	resp, err := describe.Reflect(respType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "registry: skipping %s: %v\n", name, err)
		return &SchemaError{Service: name, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[name] = &Service{
		Name:        name,
		Description: description,
		Request:     req,
		Response:    resp,
		Handle:      handle,
	}
	return nil
}

// ListServiceNames implements Registry.
func (s *Static) ListServiceNames(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.services))
	for name := range s.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Resolve implements Registry.
func (s *Static) Resolve(ctx context.Context, name string) (*Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return svc, nil
}

// Demo returns the built-in demo registry used when no remote registry is
// configured: a handful of services with flat, nested, and array-valued
// request types.
func Demo() *Static {
	type addTwoIntsReq struct {
		A int64 `json:"a"`
		B int64 `json:"b"`
	}
	type addTwoIntsResp struct {
		Sum int64 `json:"sum"`
	}

	type concatReq struct {
		Left  string `json:"left"`
		Right string `json:"right"`
	}
	type concatResp struct {
		Joined string `json:"joined"`
	}

	type point struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	type pathLengthReq struct {
		Label  string  `json:"label"`
		Points []point `json:"points"`
	}
	type pathLengthResp struct {
		Length float64 `json:"length"`
		Count  int64   `json:"count"`
	}

	r := NewStatic()

	r.Register("/add_two_ints", "Adds two 64-bit integers.", &addTwoIntsReq{}, &addTwoIntsResp{},
		HandleFunc(func(ctx context.Context, req *message.Message) (*message.Message, error) {
			a, _ := req.Field("a")
			b, _ := req.Field("b")
			resp, err := describe.Reflect(&addTwoIntsResp{})
			if err != nil {
				return nil, err
			}
			out := message.New(resp)
			out.SetField("sum", a.(int64)+b.(int64))
			return out, nil
		}))

	r.Register("/concat", "Concatenates two strings.", &concatReq{}, &concatResp{},
		HandleFunc(func(ctx context.Context, req *message.Message) (*message.Message, error) {
			left, _ := req.Field("left")
			right, _ := req.Field("right")
			resp, err := describe.Reflect(&concatResp{})
			if err != nil {
				return nil, err
			}
			out := message.New(resp)
			out.SetField("joined", left.(string)+right.(string))
			return out, nil
		}))

	r.Register("/path_length", "Sums the segment lengths of a polyline.", &pathLengthReq{}, &pathLengthResp{},
		HandleFunc(func(ctx context.Context, req *message.Message) (*message.Message, error) {
			pointsVal, _ := req.Field("points")
			points := pointsVal.([]*message.Message)
			var length float64
			for i := 1; i < len(points); i++ {
				x0, _ := points[i-1].Field("x")
				y0, _ := points[i-1].Field("y")
				x1, _ := points[i].Field("x")
				y1, _ := points[i].Field("y")
				dx := x1.(float64) - x0.(float64)
				dy := y1.(float64) - y0.(float64)
				length += math.Sqrt(dx*dx + dy*dy)
			}
			resp, err := describe.Reflect(&pathLengthResp{})
			if err != nil {
				return nil, err
			}
			out := message.New(resp)
			out.SetField("length", length)
			out.SetField("count", int64(len(points)))
			return out, nil
		}))

	return r
}
