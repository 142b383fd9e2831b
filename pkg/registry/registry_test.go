package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/opscall/opscall/pkg/message"
	"github.com/opscall/opscall/pkg/rebuild"
)

func TestDemo_ListAndResolve(t *testing.T) {
	r := Demo()
	names, err := r.ListServiceNames(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/add_two_ints", "/concat", "/path_length"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	svc, err := r.Resolve(context.Background(), "/add_two_ints")
	if err != nil {
		t.Fatal(err)
	}
	if svc.Request.FieldNamed("a") == nil || svc.Request.FieldNamed("b") == nil {
		t.Errorf("request descriptor = %+v", svc.Request)
	}
	if svc.Response.FieldNamed("sum") == nil {
		t.Errorf("response descriptor = %+v", svc.Response)
	}
}

func TestResolve_NotFound(t *testing.T) {
	r := Demo()
	_, err := r.Resolve(context.Background(), "/nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestDemo_InvokeAddTwoInts(t *testing.T) {
	r := Demo()
	svc, err := r.Resolve(context.Background(), "/add_two_ints")
	if err != nil {
		t.Fatal(err)
	}

	req := message.New(svc.Request)
	req.SetField("a", int64(2))
	req.SetField("b", int64(40))

	resp, err := svc.Handle.Invoke(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if sum, _ := resp.Field("sum"); sum != int64(42) {
		t.Errorf("sum = %#v", sum)
	}
}

func TestDemo_InvokeWithReconstructedArray(t *testing.T) {
	r := Demo()
	svc, err := r.Resolve(context.Background(), "/path_length")
	if err != nil {
		t.Fatal(err)
	}

	exprs := map[string]string{
		"/path_length/points[0]/x": "0",
		"/path_length/points[0]/y": "0",
		"/path_length/points[1]/x": "3",
		"/path_length/points[1]/y": "4",
	}
	req, diags := rebuild.FromExpressions(svc.Request, "/path_length", exprs, 0)
	if len(diags) != 0 {
		t.Fatalf("diags = %v", diags)
	}

	resp, err := svc.Handle.Invoke(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if length, _ := resp.Field("length"); length != 5.0 {
		t.Errorf("length = %#v", length)
	}
	if count, _ := resp.Field("count"); count != int64(2) {
		t.Errorf("count = %#v", count)
	}
}
