package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/verivolabs/verivo-engine/internal/domain"
	"github.com/verivolabs/verivo-engine/internal/validator"
)

// BatchRunner triggers one validation batch for a category.
type BatchRunner interface {
	RunCategory(ctx context.Context, category domain.Category) (validator.Summary, error)
	Categories() []domain.Category
}

// ValidateHandler exposes the validation engine over HTTP so batches can be
// triggered on demand (cron, operator) in addition to the interval scheduler.
type ValidateHandler struct {
	engine BatchRunner
	logger *slog.Logger
}

// NewValidateHandler creates a ValidateHandler.
func NewValidateHandler(engine BatchRunner, logger *slog.Logger) *ValidateHandler {
	return &ValidateHandler{
		engine: engine,
		logger: logHandler(logger, "validate"),
	}
}

// RunCategory executes one batch for the named category and returns its
// summary.
// POST /api/validate/{category}
func (h *ValidateHandler) RunCategory(w http.ResponseWriter, r *http.Request) {
	category := normalizeCategory(pathParam(r, "category"))

	summary, err := h.engine.RunCategory(r.Context(), category)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// normalizeCategory maps a path segment onto the canonical category spelling
// so "crypto" and "Crypto" both work.
func normalizeCategory(s string) domain.Category {
	for _, c := range domain.Categories {
		if strings.EqualFold(string(c), s) {
			return c
		}
	}
	return domain.Category(s)
}

// ListCategories reports the categories with a registered validator.
// GET /api/validate
func (h *ValidateHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": h.engine.Categories(),
	})
}
