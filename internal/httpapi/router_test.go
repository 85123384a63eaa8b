package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"bsnode/internal/bserr"
)

type fakeService struct {
	result Result
	err    error
}

func (f *fakeService) Query(_ context.Context, _ Method, _ Params) (Result, error) {
	return f.result, f.err
}

func TestRouterServesConfiguration(t *testing.T) {
	svc := &fakeService{result: Result{Bytes: []byte("config")}}
	rt := NewRouter(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/configuration", nil)
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "config" {
		t.Fatalf("body = %q", w.Body.String())
	}
}

func TestRouterRunsAddressQueryOnWorkerPool(t *testing.T) {
	svc := &fakeService{result: Result{Bytes: []byte("42")}}
	rt := NewRouter(svc, nil)

	h := "0000000000000000000000000000000000000000000000000000000000000042"
	req := httptest.NewRequest(http.MethodGet, "/v1/address/"+h+"/balance", nil)
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "42" {
		t.Fatalf("body = %q", w.Body.String())
	}
}

func TestRouterTranslatesNotFoundFromService(t *testing.T) {
	svc := &fakeService{err: bserr.ErrNotFound}
	rt := NewRouter(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/top", nil)
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestRouterReturns404OnGrammarParseError(t *testing.T) {
	svc := &fakeService{}
	rt := NewRouter(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/block", nil)
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for missing_component", w.Code)
	}
}
