package server

import (
	"encoding/json"
	"net/http"

	"github.com/aristath/marketcore/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{"error_code": code, "detail": detail})
}

// writeAppErr translates an apperr.Error (or a plain error) into the
// standard {error_code, detail} body. UpstreamDegraded never reaches this
// path: degraded provider results are returned as structured payloads by
// the caller, not as errors.
func writeAppErr(w http.ResponseWriter, err error) {
	if appErr, ok := apperr.As(err); ok {
		writeError(w, appErr.HTTPStatus(), string(appErr.Kind), appErr.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, string(apperr.KindInternal), "internal error")
}
