// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// ErrBadRequest marks request bodies that could not be decoded.
var ErrBadRequest = errors.New("bad request")

// RespondError maps errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest):
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
