package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// Failure kinds. Match them with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrTransport    = errors.New("transport failure")
)

// HTTPError is a non-2xx response. Details holds the server's human-readable
// messages in the order they were sent.
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Body    []byte
	Details []string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}
	return msg
}

func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Status == http.StatusUnprocessableEntity
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// Messages returns Details, or the status text when the server sent none.
func (e *HTTPError) Messages() []string {
	if len(e.Details) > 0 {
		return slices.Clone(e.Details)
	}
	return []string{http.StatusText(e.Status)}
}

// TransportError is a failure with no HTTP response behind it.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Messages returns the ordered human-readable messages carried by err. Errors
// that carry none yield their own text as the single message.
func Messages(err error) []string {
	if err == nil {
		return nil
	}
	var m interface{ Messages() []string }
	if errors.As(err, &m) {
		if msgs := m.Messages(); len(msgs) > 0 {
			return msgs
		}
	}
	return []string{err.Error()}
}

// parseDetails accepts a bare JSON array of strings, or an object carrying
// "errors" (array or string), "error" or "message".
func parseDetails(body []byte) []string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(body, &list); err == nil {
		return nonEmpty(list)
	}

	var obj struct {
		Errors  json.RawMessage `json:"errors"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil
	}
	if len(obj.Errors) > 0 {
		if err := json.Unmarshal(obj.Errors, &list); err == nil {
			return nonEmpty(list)
		}
		var one string
		if err := json.Unmarshal(obj.Errors, &one); err == nil && one != "" {
			return []string{one}
		}
	}
	if obj.Error != "" {
		return []string{obj.Error}
	}
	if obj.Message != "" {
		return []string{obj.Message}
	}
	return nil
}

func nonEmpty(list []string) []string {
	out := list[:0]
	for _, s := range list {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
