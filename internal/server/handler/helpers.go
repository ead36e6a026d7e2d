package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/verivolabs/verivo-engine/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response. The optional code gives
// clients a stable machine-readable discriminator alongside the message.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	body := map[string]string{"error": msg}
	if code != "" {
		body["code"] = code
	}
	writeJSON(w, status, body)
}

// writeDomainError maps domain sentinel errors to HTTP statuses and stable
// error codes. Unrecognized errors become an opaque 500.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	case errors.Is(err, domain.ErrInvalidPrediction):
		writeError(w, http.StatusBadRequest, "INVALID_PREDICTION", err.Error())
	case errors.Is(err, domain.ErrUnknownCategory):
		writeError(w, http.StatusBadRequest, "UNKNOWN_CATEGORY", err.Error())
	case errors.Is(err, domain.ErrActivePredictionExists):
		writeError(w, http.StatusConflict, "ACTIVE_PREDICTION_EXISTS",
			"an unresolved prediction already exists for this asset and window")
	case errors.Is(err, domain.ErrMarketClosed):
		writeError(w, http.StatusConflict, "MARKET_CLOSED", err.Error())
	case errors.Is(err, domain.ErrCutoffPassed):
		writeError(w, http.StatusConflict, "CUTOFF_PASSED", err.Error())
	case errors.Is(err, domain.ErrPriceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "PRICE_UNAVAILABLE",
			"could not price the asset right now, try again shortly")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found")
	default:
		logger.Error("unhandled request error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "", "internal server error")
	}
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
