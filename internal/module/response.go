package module

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/GriffinCanCode/ScraperAPI/internal/shared/encoding"
)

// ErrorMessage is the only failure detail ever sent to clients.
const ErrorMessage = "An error occurred"

const (
	contentTypeJSON = "application/json"
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeBin  = "application/octet-stream"
	prettyIndent    = "  "
)

// PrettyMarshaler is implemented by values that render their own indented
// JSON, e.g. script values whose key order only the script runtime knows.
type PrettyMarshaler interface {
	MarshalIndentJSON(indent string) ([]byte, error)
}

// Response buffers what a module sends so the dispatcher can either flush it
// or replace it with the fixed error body. The first JSON call is rendered
// pretty-printed with Content-Type application/json; later calls use the
// compact encoding. Response implements http.ResponseWriter.
type Response struct {
	mu     sync.Mutex
	header http.Header
	status int
	body   bytes.Buffer
	armed  bool
	sent   bool
	closed bool
	err    error
}

// NewResponse returns an empty 200 response with the pretty-print transform armed.
func NewResponse() *Response {
	return &Response{
		header: make(http.Header),
		status: http.StatusOK,
		armed:  true,
	}
}

func (r *Response) Header() http.Header {
	return r.header
}

// WriteHeader records code. An invalid code is kept as the error returned by
// Err and later sends; the status is left unchanged.
func (r *Response) WriteHeader(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setStatus(code) {
		r.sent = true
	}
}

func (r *Response) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(p)
}

func (r *Response) write(p []byte) (int, error) {
	if r.closed {
		return 0, ErrResponseClosed
	}
	if r.err != nil {
		return 0, r.err
	}
	r.sent = true
	return r.body.Write(p)
}

// Status sets the status code without sending anything. See WriteHeader for
// invalid codes.
func (r *Response) Status(code int) *Response {
	r.mu.Lock()
	r.setStatus(code)
	r.mu.Unlock()
	return r
}

func (r *Response) setStatus(code int) bool {
	if !ValidStatus(code) {
		if r.err == nil {
			r.err = fmt.Errorf("%w: %d", ErrInvalidStatus, code)
		}
		return false
	}
	r.status = code
	return true
}

// Err returns the first invalid status code set on the response, if any.
func (r *Response) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Set sets a response header.
func (r *Response) Set(key, value string) *Response {
	r.mu.Lock()
	r.header.Set(key, value)
	r.mu.Unlock()
	return r
}

// StatusCode returns the status that will be flushed.
func (r *Response) StatusCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// JSON sends v as JSON. The first call on a Response is pretty-printed.
func (r *Response) JSON(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.armed {
		r.armed = false
		return r.sendPretty(v)
	}
	return r.sendCompact(v)
}

// SendPretty sends v as 2-space indented JSON regardless of the transform state.
func (r *Response) SendPretty(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sendPretty(v)
}

// SendError discards anything buffered so far and sends v as compact JSON
// with the given status.
func (r *Response) SendError(status int, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrResponseClosed
	}
	if !ValidStatus(status) {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, status)
	}
	r.err = nil
	r.header = make(http.Header)
	r.body.Reset()
	r.armed = false
	r.status = status
	return r.sendCompact(v)
}

// Send writes a raw body, defaulting the content type to octet-stream.
func (r *Response) Send(body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultContentType(contentTypeBin)
	_, err := r.write(body)
	return err
}

// SendString writes a text body, defaulting the content type to HTML.
func (r *Response) SendString(body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultContentType(contentTypeHTML)
	_, err := r.write([]byte(body))
	return err
}

// Written reports whether the module sent anything.
func (r *Response) Written() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent
}

// Armed reports whether the next JSON call will be pretty-printed.
func (r *Response) Armed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.armed
}

// Bytes returns a copy of the buffered body.
func (r *Response) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bytes.Clone(r.body.Bytes())
}

// Flush copies status, headers and body to w. The Response rejects writes afterwards.
func (r *Response) Flush(w http.ResponseWriter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrResponseClosed
	}
	if r.err != nil {
		return r.err
	}
	r.closed = true

	dst := w.Header()
	for k, vs := range r.header {
		dst[k] = append([]string(nil), vs...)
	}
	w.WriteHeader(r.status)
	if r.body.Len() == 0 {
		return nil
	}
	_, err := w.Write(r.body.Bytes())
	return err
}

func (r *Response) sendPretty(v any) error {
	data, err := MarshalPretty(v)
	if err != nil {
		return err
	}
	r.header.Set("Content-Type", contentTypeJSON)
	_, err = r.write(data)
	return err
}

func (r *Response) sendCompact(v any) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	r.defaultContentType(contentTypeJSON)
	_, err = r.write(data)
	return err
}

func (r *Response) defaultContentType(ct string) {
	if r.header.Get("Content-Type") == "" {
		r.header.Set("Content-Type", ct)
	}
}

// Marshal encodes v as compact JSON.
func Marshal(v any) ([]byte, error) {
	if m, ok := v.(json.Marshaler); ok {
		return m.MarshalJSON()
	}
	return encoding.Marshal(v)
}

// MarshalPretty encodes v as JSON indented by two spaces.
func MarshalPretty(v any) ([]byte, error) {
	if m, ok := v.(PrettyMarshaler); ok {
		return m.MarshalIndentJSON(prettyIndent)
	}
	return encoding.MarshalIndent(v, prettyIndent)
}

// ValidStatus reports whether code can be written by net/http.
func ValidStatus(code int) bool {
	return code >= 100 && code <= 999
}

// ErrorBody returns the compact body sent for every request failure.
func ErrorBody() []byte {
	return []byte(`{"error":"` + ErrorMessage + `"}`)
}
