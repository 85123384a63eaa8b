package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"bsnode/internal/bserr"
)

// Encoding is one of the three response media types the dispatcher
// negotiates.
type Encoding int

const (
	EncodingBytes Encoding = iota
	EncodingHex
	EncodingJSON
)

func (e Encoding) contentType() string {
	switch e {
	case EncodingHex:
		return "text/plain"
	case EncodingJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Negotiate resolves a `format` query value or Accept header into one of
// the three encodings, restricted to allowed. An empty format falls back
// to EncodingBytes. A method that does not support the resolved encoding
// (e.g. a JSON-only method asked for bytes) yields not_acceptable.
func Negotiate(format, accept string, allowed []Encoding) (Encoding, error) {
	enc := EncodingBytes
	switch strings.ToLower(format) {
	case "", "data":
		enc = EncodingBytes
	case "text", "hex":
		enc = EncodingHex
	case "json":
		enc = EncodingJSON
	default:
		if accept != "" {
			enc = encodingFromAccept(accept)
		}
	}
	for _, a := range allowed {
		if a == enc {
			return enc, nil
		}
	}
	return 0, bserr.ErrNotAcceptable
}

func encodingFromAccept(accept string) Encoding {
	switch {
	case strings.Contains(accept, "application/json"):
		return EncodingJSON
	case strings.Contains(accept, "text/plain"):
		return EncodingHex
	default:
		return EncodingBytes
	}
}

// ResponseBuilder is the C8 public contract: one call per handler selects
// exactly one of the three send methods, or one of the error helpers.
type ResponseBuilder struct {
	w http.ResponseWriter
}

// NewResponseBuilder wraps w.
func NewResponseBuilder(w http.ResponseWriter) *ResponseBuilder {
	return &ResponseBuilder{w: w}
}

// SendChunk writes raw bytes with content type application/octet-stream.
func (b *ResponseBuilder) SendChunk(data []byte) {
	b.w.Header().Set("Content-Type", EncodingBytes.contentType())
	b.w.WriteHeader(http.StatusOK)
	_, _ = b.w.Write(data)
}

// SendText writes the base16 (hex) encoding of data as text/plain.
func (b *ResponseBuilder) SendText(data []byte) {
	b.w.Header().Set("Content-Type", EncodingHex.contentType())
	b.w.WriteHeader(http.StatusOK)
	_, _ = b.w.Write([]byte(hex.EncodeToString(data)))
}

// SendJSON marshals value as application/json. hint is an estimated byte
// size used to pre-size the output buffer before marshaling.
func (b *ResponseBuilder) SendJSON(value any, hint int) {
	buf := make([]byte, 0, hint)
	out, err := json.Marshal(value)
	if err != nil {
		b.InternalServerError(err)
		return
	}
	buf = append(buf, out...)
	b.w.Header().Set("Content-Type", EncodingJSON.contentType())
	b.w.WriteHeader(http.StatusOK)
	_, _ = b.w.Write(buf)
}

// NotFound writes the 404 status with no body.
func (b *ResponseBuilder) NotFound() {
	b.w.WriteHeader(http.StatusNotFound)
}

// NotAcceptable writes the 406 status with no body.
func (b *ResponseBuilder) NotAcceptable() {
	b.w.WriteHeader(http.StatusNotAcceptable)
}

// NotImplemented writes the 501 status with no body.
func (b *ResponseBuilder) NotImplemented() {
	b.w.WriteHeader(http.StatusNotImplemented)
}

// InternalServerError writes a 500 and a small JSON envelope carrying the
// error text. The envelope holds no request-correlation id; the router
// writes its request id only to its log line.
func (b *ResponseBuilder) InternalServerError(ec error) {
	b.w.Header().Set("Content-Type", EncodingJSON.contentType())
	b.w.WriteHeader(http.StatusInternalServerError)
	body, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: ec.Error()})
	_, _ = b.w.Write(body)
}

// EncodeVector renders a slice of already-encoded items under encoding:
// concatenation for bytes, hex-concatenation for hex, array-wrap for JSON.
func EncodeVector(enc Encoding, items [][]byte) []byte {
	switch enc {
	case EncodingHex:
		var sb strings.Builder
		for _, it := range items {
			sb.WriteString(hex.EncodeToString(it))
		}
		return []byte(sb.String())
	case EncodingJSON:
		out, _ := json.Marshal(items)
		return out
	default:
		var buf []byte
		for _, it := range items {
			buf = append(buf, it...)
		}
		return buf
	}
}

// StatusForError maps a taxonomy error to its HTTP status.
func StatusForError(err error) int {
	switch {
	case bserr.Is(err, bserr.ErrNotFound):
		return http.StatusNotFound
	case bserr.Is(err, bserr.ErrNotAcceptable):
		return http.StatusNotAcceptable
	case bserr.Is(err, bserr.ErrNotImplemented):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
