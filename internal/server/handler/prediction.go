package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/verivolabs/verivo-engine/internal/domain"
	"github.com/verivolabs/verivo-engine/internal/server/middleware"
	"github.com/verivolabs/verivo-engine/internal/service"
)

// PredictionCreator is the slice of the prediction service the handler needs.
type PredictionCreator interface {
	Create(ctx context.Context, userID string, req service.CreateRequest) (domain.Prediction, error)
}

// PredictionReader loads stored predictions.
type PredictionReader interface {
	GetByID(ctx context.Context, id string) (domain.Prediction, error)
}

// PredictionHandler serves the prediction endpoints.
type PredictionHandler struct {
	creator PredictionCreator
	reader  PredictionReader
	logger  *slog.Logger
}

// NewPredictionHandler creates a PredictionHandler.
func NewPredictionHandler(creator PredictionCreator, reader PredictionReader, logger *slog.Logger) *PredictionHandler {
	return &PredictionHandler{
		creator: creator,
		reader:  reader,
		logger:  logHandler(logger, "predictions"),
	}
}

type createPredictionRequest struct {
	Title            string     `json:"title"`
	Category         string     `json:"category"`
	Region           string     `json:"region"`
	Direction        string     `json:"direction"`
	MarketType       string     `json:"market_type"`
	GlobalAsset      string     `json:"global_asset"`
	GlobalIdentifier string     `json:"global_identifier"`
	Timeframe        string     `json:"timeframe"`
	DurationMinutes  *int       `json:"duration_minutes"`
	TargetDate       *time.Time `json:"target_date"`
	PredictionType   string     `json:"prediction_type"`
}

type predictionResponse struct {
	ID              string     `json:"id"`
	Category        string     `json:"category"`
	MarketType      string     `json:"market_type"`
	AssetSymbol     string     `json:"asset_symbol"`
	AssetKey        string     `json:"asset_key"`
	Direction       string     `json:"direction"`
	Title           string     `json:"title"`
	PredictionType  string     `json:"prediction_type"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	TargetDate      *time.Time `json:"target_date,omitempty"`
	ReferenceTime   time.Time  `json:"reference_time"`
	ReferencePrice  *float64   `json:"reference_price,omitempty"`
	FinalPrice      *float64   `json:"final_price,omitempty"`
	DataSource      string     `json:"data_source,omitempty"`
	Outcome         *string    `json:"outcome,omitempty"`
	EvaluationTime  *time.Time `json:"evaluation_time,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toResponse(p domain.Prediction) predictionResponse {
	resp := predictionResponse{
		ID:              p.ID,
		Category:        string(p.Category),
		MarketType:      string(p.MarketType),
		AssetSymbol:     p.AssetSymbol,
		AssetKey:        p.AssetKey,
		Direction:       string(p.Direction),
		Title:           p.Title,
		PredictionType:  string(p.PredictionType),
		DurationMinutes: p.DurationMinutes,
		TargetDate:      p.TargetDate,
		ReferenceTime:   p.ReferenceTime,
		ReferencePrice:  p.ReferencePrice,
		FinalPrice:      p.FinalPrice,
		DataSource:      p.DataSource,
		EvaluationTime:  p.EvaluationTime,
		CreatedAt:       p.CreatedAt,
	}
	if p.Outcome != nil {
		s := string(*p.Outcome)
		resp.Outcome = &s
	}
	return resp
}

// CreatePrediction submits a new prediction for the authenticated user.
// POST /api/predictions
func (h *PredictionHandler) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	var body createPredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body")
		return
	}

	userID := middleware.UserIDFromContext(r.Context())

	p, err := h.creator.Create(r.Context(), userID, service.CreateRequest{
		Title:            body.Title,
		Category:         domain.Category(body.Category),
		Region:           body.Region,
		Direction:        domain.Direction(body.Direction),
		MarketType:       domain.MarketType(body.MarketType),
		GlobalAsset:      body.GlobalAsset,
		GlobalIdentifier: body.GlobalIdentifier,
		Timeframe:        body.Timeframe,
		DurationMinutes:  body.DurationMinutes,
		TargetDate:       body.TargetDate,
		PredictionType:   domain.PredictionType(body.PredictionType),
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"prediction": toResponse(p),
	})
}

// GetPrediction returns one prediction by ID.
// GET /api/predictions/{id}
func (h *PredictionHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "", "missing prediction id")
		return
	}

	p, err := h.reader.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(p))
}
