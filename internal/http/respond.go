package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/tomek7667/devconsole/internal/backend"
	"github.com/tomek7667/devconsole/internal/drill"
	"github.com/tomek7667/devconsole/internal/flatten"
	"github.com/tomek7667/devconsole/internal/rescache"
)

const maxBodyBytes = 8 << 20

var (
	errBadRequest      = errors.New("bad request")
	errSessionNotFound = errors.New("disk session not found")
	errRefreshInFlight = errors.New("refresh already in progress")
	errEmptyBody       = fmt.Errorf("%w: empty body", errBadRequest)
	errForbidden       = errors.New("forbidden")
	errNotJSON         = errors.New("content type must be application/json")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

func statusOf(err error) int {
	var shape *flatten.ShapeConflictError
	var unknownField *flatten.UnknownFieldError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, backend.ErrBadArgs),
		errors.Is(err, drill.ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, backend.ErrUnknownCommand),
		errors.Is(err, rescache.ErrUnknownKind),
		errors.Is(err, errSessionNotFound),
		errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, errNotJSON):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, errRefreshInFlight):
		return http.StatusConflict
	case errors.As(err, &shape), errors.As(err, &unknownField), errors.Is(err, flatten.ErrInvalidValue):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), backend.ErrorBody{Error: err.Error()})
}

// decodeBody decodes a JSON request body into v. Numbers decode as
// json.Number.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
