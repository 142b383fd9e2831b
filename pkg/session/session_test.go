package session

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/opscall/opscall/pkg/archive"
	"github.com/opscall/opscall/pkg/message"
	"github.com/opscall/opscall/pkg/registry"
	"github.com/opscall/opscall/pkg/tree"
)

func newAddTwoInts(t *testing.T) *Session {
	t.Helper()
	s, err := New(context.Background(), registry.Demo(), "/add_two_ints")
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNew_ProjectsRequest(t *testing.T) {
	s := newAddTwoInts(t)
	root := s.Tree()
	if root.Name != "/add_two_ints" {
		t.Errorf("root = %q", root.Name)
	}
	if root.Find("/add_two_ints/a") == nil || root.Find("/add_two_ints/b") == nil {
		t.Error("request leaves missing")
	}
	if len(s.Expressions()) != 0 {
		t.Error("expression map must start empty")
	}
}

func TestCall_EndToEnd(t *testing.T) {
	s := newAddTwoInts(t)
	if err := s.SetExpression("/add_two_ints/a", "2"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetExpression("/add_two_ints/b", "40"); err != nil {
		t.Fatal(err)
	}

	resp, diags, err := s.Call(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(diags) != 0 {
		t.Errorf("diags = %v", diags)
	}
	sum := resp.Find("/add_two_ints/sum")
	if sum == nil {
		t.Fatal("no sum leaf in response")
	}
	if sum.Expression != "42" {
		t.Errorf("sum = %q", sum.Expression)
	}
	if sum.Editable {
		t.Error("response tree must be read-only")
	}
}

func TestCall_CounterExpression(t *testing.T) {
	s := newAddTwoInts(t)
	if err := s.SetCounter(4); err != nil {
		t.Fatal(err)
	}
	s.SetExpression("/add_two_ints/a", "i * 2")
	s.SetExpression("/add_two_ints/b", "0")

	resp, _, err := s.Call(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Find("/add_two_ints/sum").Expression; got != "8" {
		t.Errorf("sum = %q", got)
	}

	if err := s.SetCounter(-1); err == nil {
		t.Error("negative counter must be rejected")
	}
}

func TestCall_ExpressionsPersistAcrossInvocations(t *testing.T) {
	s := newAddTwoInts(t)
	s.SetExpression("/add_two_ints/a", "20")
	s.SetExpression("/add_two_ints/b", "22")

	for range 2 {
		resp, _, err := s.Call(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if got := resp.Find("/add_two_ints/sum").Expression; got != "42" {
			t.Errorf("sum = %q", got)
		}
	}
}

func TestBuildRequest_ConcurrentWithSetExpression(t *testing.T) {
	s := newAddTwoInts(t)
	s.SetExpression("/add_two_ints/a", "1")

	// Reconstruction must walk a snapshot of the expression map: edits made
	// while a call is in flight would otherwise race the map iteration.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 200 {
			s.BuildRequest()
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 200 {
			s.SetExpression("/add_two_ints/b", strconv.Itoa(i))
		}
	}()
	wg.Wait()

	req, diags := s.BuildRequest()
	if len(diags) != 0 {
		t.Fatalf("diags = %v", diags)
	}
	if b, _ := req.Field("b"); b != int64(199) {
		t.Errorf("b = %#v", b)
	}
}

func TestCall_ResponseMessageRetained(t *testing.T) {
	s := newAddTwoInts(t)
	if s.Response() != nil {
		t.Error("response must be nil before the first call")
	}
	s.SetExpression("/add_two_ints/a", "2")
	s.SetExpression("/add_two_ints/b", "40")

	if _, _, err := s.Call(context.Background()); err != nil {
		t.Fatal(err)
	}
	resp := s.Response()
	if resp == nil {
		t.Fatal("no response message after successful call")
	}
	// Typed values, not display strings: JSON output depends on this.
	if sum, _ := resp.Field("sum"); sum != int64(42) {
		t.Errorf("sum = %#v", sum)
	}
	if got := resp.ToMap()["sum"]; got != int64(42) {
		t.Errorf("ToMap sum = %#v", got)
	}
}

func TestSetExpression_RejectsUnknownPath(t *testing.T) {
	s := newAddTwoInts(t)
	if err := s.SetExpression("/add_two_ints/ghost", "1"); err == nil {
		t.Error("unknown path must be rejected")
	}
	if len(s.Expressions()) != 0 {
		t.Error("map must stay sparse")
	}
}

func TestCall_RemoteFailureProjectsErrorTree(t *testing.T) {
	r := registry.NewStatic()
	type req struct {
		X int64 `json:"x"`
	}
	type resp struct {
		Y int64 `json:"y"`
	}
	r.Register("/flaky", "always fails", &req{}, &resp{},
		registry.HandleFunc(func(ctx context.Context, m *message.Message) (*message.Message, error) {
			return nil, &registry.RemoteError{Service: "/flaky", Message: "backend unavailable"}
		}))

	s, err := New(context.Background(), r, "/flaky")
	if err != nil {
		t.Fatal(err)
	}
	respTree, _, err := s.Call(context.Background())
	if err == nil {
		t.Fatal("expected remote error")
	}
	if respTree == nil || respTree.Name != "ERROR" {
		t.Fatalf("error tree = %+v", respTree)
	}
	if respTree.TypeName != "registry.RemoteError" {
		t.Errorf("type = %q", respTree.TypeName)
	}
}

func TestArrayElements_AddAndRemove(t *testing.T) {
	s, err := New(context.Background(), registry.Demo(), "/path_length")
	if err != nil {
		t.Fatal(err)
	}
	child, err := s.AddArrayElement("/path_length/points")
	if err != nil {
		t.Fatal(err)
	}
	if child.Path != "/path_length/points[0]" {
		t.Errorf("child = %q", child.Path)
	}
	// Adding an element must not create expression entries by itself.
	if len(s.Expressions()) != 0 {
		t.Error("expression map must stay empty after add")
	}

	err = s.RemoveArrayElement("/path_length/points", 0)
	if !errors.Is(err, tree.ErrRemoveUnsupported) {
		t.Errorf("err = %v", err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.yaml")

	s := newAddTwoInts(t)
	s.SetExpression("/add_two_ints/a", "2")
	s.SetExpression("/add_two_ints/b", "40")
	if err := s.SaveRequest(path, "the_answer"); err != nil {
		t.Fatal(err)
	}

	fresh := newAddTwoInts(t)
	if err := fresh.LoadRequest(path, "the_answer"); err != nil {
		t.Fatal(err)
	}
	req, diags := fresh.BuildRequest()
	if len(diags) != 0 {
		t.Fatalf("diags = %v", diags)
	}
	if a, _ := req.Field("a"); a != int64(2) {
		t.Errorf("a = %#v", a)
	}
	if b, _ := req.Field("b"); b != int64(40) {
		t.Errorf("b = %#v", b)
	}
}

func TestLoad_TypeMismatchLeavesSessionUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.yaml")

	other, err := New(context.Background(), registry.Demo(), "/concat")
	if err != nil {
		t.Fatal(err)
	}
	other.SetExpression("/concat/left", `"a"`)
	if err := other.SaveRequest(path, "wrong_type"); err != nil {
		t.Fatal(err)
	}

	s := newAddTwoInts(t)
	s.SetExpression("/add_two_ints/a", "7")

	err = s.LoadRequest(path, "wrong_type")
	var mismatch *archive.TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want TypeMismatchError", err)
	}
	// The session must be untouched by the failed load.
	if got := s.Expressions()["/add_two_ints/a"]; got != "7" {
		t.Errorf("expression map mutated: %v", s.Expressions())
	}
}
