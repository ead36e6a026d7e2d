package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/verivolabs/verivo-engine/internal/domain"
)

func eventJSON(t *testing.T, outcome domain.Outcome) []byte {
	t.Helper()
	ref := 42000.0
	final := 42100.0
	data, err := json.Marshal(domain.EvaluationEvent{
		PredictionID:   "p1",
		UserID:         "u1",
		Category:       domain.CategoryCrypto,
		AssetKey:       "crypto:btc",
		Direction:      domain.DirectionUp,
		Outcome:        outcome,
		ReferencePrice: &ref,
		FinalPrice:     &final,
		EvaluationTime: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return data
}

func TestEnvelopeForOutcomeTypes(t *testing.T) {
	tests := []struct {
		name     string
		outcome  domain.Outcome
		wantType string
	}{
		{"correct", domain.OutcomeCorrect, "prediction_evaluated"},
		{"incorrect", domain.OutcomeIncorrect, "prediction_evaluated"},
		{"data unavailable", domain.OutcomeDataUnavailable, "data_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := eventJSON(t, tt.outcome)
			envelope, err := envelopeFor(raw)
			if err != nil {
				t.Fatalf("envelopeFor: %v", err)
			}

			var got struct {
				Type    string          `json:"type"`
				Payload json.RawMessage `json:"payload"`
			}
			if err := json.Unmarshal(envelope, &got); err != nil {
				t.Fatalf("unmarshal envelope: %v", err)
			}
			if got.Type != tt.wantType {
				t.Errorf("type = %q, want %q", got.Type, tt.wantType)
			}

			var payload domain.EvaluationEvent
			if err := json.Unmarshal(got.Payload, &payload); err != nil {
				t.Fatalf("unmarshal payload: %v", err)
			}
			if payload.Outcome != tt.outcome {
				t.Errorf("payload outcome = %q, want %q", payload.Outcome, tt.outcome)
			}
		})
	}
}

func TestEnvelopeForRejectsMalformedPayload(t *testing.T) {
	if _, err := envelopeFor([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
