package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"bsnode/internal/bserr"
)

// Result is what a Service query produces: either a scalar payload (Bytes/
// JSON) or a vector of already-encoded items, per the
// "Serialization rules".
type Result struct {
	Bytes    []byte
	JSON     any
	JSONHint int
	Vector   [][]byte
	IsVector bool
	Allowed  []Encoding // encodings this method supports; nil means all three
}

// Service answers a parsed (Method, Params) query against the store. The
// executor's wiring supplies the concrete implementation; this package only
// depends on the interface so the grammar and builder stay testable in
// isolation.
type Service interface {
	Query(ctx context.Context, m Method, p Params) (Result, error)
}

// Logger is the minimal sink the router writes through.
type Logger interface {
	Printf(format string, args ...any)
}

// addressWorkerMethods are the three address queries routed
// onto a worker pool with a connection-close monitor (§4.8, §5).
var addressWorkerMethods = map[Method]bool{
	MethodAddressConfirmed:   true,
	MethodAddressUnconfirmed: true,
	MethodAddressBalance:     true,
}

// Router wires C7's parser and C8's builder to svc through gorilla/mux,
// dispatching the three long-running address queries onto an errgroup
// worker goroutine; the request-handling goroutine waits for that worker
// before writing the response.
type Router struct {
	svc Service
	log Logger
	mux *mux.Router
}

// NewRouter constructs a Router with one catch-all route per grammar root,
// matching gorilla/mux's prefix-routing idiom (teacher: cmd/explorer).
func NewRouter(svc Service, log Logger) *Router {
	rt := &Router{svc: svc, log: log, mux: mux.NewRouter()}
	for _, root := range []string{"configuration", "top", "block", "tx", "input", "output", "address"} {
		rt.mux.PathPrefix("/v{version:[0-9]+}/" + root).HandlerFunc(rt.handle)
	}
	return rt
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

func (rt *Router) handle(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()
	b := NewResponseBuilder(w)

	method, params, err := Parse(r.URL.Path)
	if err != nil {
		b.NotFound()
		if rt.log != nil {
			rt.log.Printf("httpapi[%s]: parse error for %s: %v", reqID, r.URL.Path, err)
		}
		return
	}

	var result Result
	if addressWorkerMethods[method] {
		result, err = rt.dispatchOnPool(r, method, params)
	} else {
		result, err = rt.svc.Query(r.Context(), method, params)
	}
	if err != nil {
		rt.writeError(b, reqID, err)
		return
	}

	enc, err := Negotiate(r.URL.Query().Get("format"), r.Header.Get("Accept"), allowedOrDefault(result.Allowed))
	if err != nil {
		b.NotAcceptable()
		return
	}
	rt.writeResult(b, enc, result)
}

func allowedOrDefault(allowed []Encoding) []Encoding {
	if allowed != nil {
		return allowed
	}
	return []Encoding{EncodingBytes, EncodingHex, EncodingJSON}
}

// dispatchOnPool runs the three long-running address handlers on a
// separate goroutine via errgroup, attaching a connection-close monitor
// that cancels the query context if the client disconnects
// before the store work completes.
func (rt *Router) dispatchOnPool(r *http.Request, method Method, params Params) (Result, error) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	var result Result
	g.Go(func() error {
		res, err := rt.svc.Query(gctx, method, params)
		result = res
		return err
	})

	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return result, nil
}

func (rt *Router) writeError(b *ResponseBuilder, reqID string, err error) {
	switch {
	case bserr.Is(err, bserr.ErrNotFound):
		b.NotFound()
	case bserr.Is(err, bserr.ErrNotImplemented):
		b.NotImplemented()
	case bserr.Is(err, bserr.ErrNotAcceptable):
		b.NotAcceptable()
	default:
		if rt.log != nil {
			rt.log.Printf("httpapi[%s]: internal error: %v", reqID, err)
		}
		b.InternalServerError(err)
	}
}

func (rt *Router) writeResult(b *ResponseBuilder, enc Encoding, result Result) {
	if result.IsVector {
		switch enc {
		case EncodingHex:
			b.SendText(EncodeVector(EncodingBytes, result.Vector))
		case EncodingJSON:
			b.SendJSON(result.Vector, result.JSONHint)
		default:
			b.SendChunk(EncodeVector(EncodingBytes, result.Vector))
		}
		return
	}
	switch enc {
	case EncodingHex:
		b.SendText(result.Bytes)
	case EncodingJSON:
		if result.JSON != nil {
			b.SendJSON(result.JSON, result.JSONHint)
		} else {
			b.SendJSON(struct {
				Hex string `json:"hex"`
			}{Hex: ""}, result.JSONHint)
		}
	default:
		b.SendChunk(result.Bytes)
	}
}
