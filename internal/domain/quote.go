package domain

import "time"

// Quote is a price sample from an external source. Price is nil for deferred
// opening-mode references, where only the capture instant is known up front.
type Quote struct {
	Price  *float64
	Time   time.Time
	Source string
}

// EvaluationEvent is published whenever a validator resolves an outcome. It
// is consumed by the WebSocket hub and the notification dispatcher.
type EvaluationEvent struct {
	PredictionID   string    `json:"prediction_id"`
	UserID         string    `json:"user_id"`
	Category       Category  `json:"category"`
	AssetKey       string    `json:"asset_key"`
	Direction      Direction `json:"direction"`
	Outcome        Outcome   `json:"outcome"`
	ReferencePrice *float64  `json:"reference_price,omitempty"`
	FinalPrice     *float64  `json:"final_price,omitempty"`
	EvaluationTime time.Time `json:"evaluation_time"`
}
