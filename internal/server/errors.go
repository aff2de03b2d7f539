package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/matzehuels/ercanvas/pkg/errors"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

// statusFor maps an error code to an HTTP status.
func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidModel, errors.ErrCodeInvalidFormat,
		errors.ErrCodeInvalidCategory, errors.ErrCodeInvalidCardinality:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeEntityNotFound,
		errors.ErrCodeRelationshipNotFound, errors.ErrCodeWorkspaceNotFound:
		return http.StatusNotFound
	case errors.ErrCodeQuotaExceeded:
		return http.StatusTooManyRequests
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeNetwork, errors.ErrCodeBadResponse:
		return http.StatusBadGateway
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as {code, message}. Uncoded errors become
// INTERNAL_ERROR and their text is not leaked to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	msg := errors.UserMessage(err)
	var mbe *http.MaxBytesError
	switch {
	case stderrors.As(err, &mbe):
		code, msg = errors.ErrCodeInvalidInput, "request body too large"
	case code == "":
		code, msg = errors.ErrCodeInternal, "internal error"
	}
	status := statusFor(code)
	if status >= 500 {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Code: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON request body into v.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if stderrors.As(err, &mbe) {
			return err
		}
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body")
	}
	return nil
}
