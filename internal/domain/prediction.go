package domain

import "time"

// Category classifies a prediction by asset class. Each category is resolved
// by its own validator worker against its own price source.
type Category string

const (
	CategoryCrypto      Category = "Crypto"
	CategoryForex       Category = "Forex"
	CategoryCommodities Category = "Commodities"
	CategoryIndices     Category = "Indices"
	CategoryStocks      Category = "Stocks"
)

// Categories lists every category with a validator worker.
var Categories = []Category{
	CategoryCrypto,
	CategoryForex,
	CategoryCommodities,
	CategoryIndices,
	CategoryStocks,
}

// MarketType distinguishes how an asset is identified and priced.
type MarketType string

const (
	MarketTypeStock  MarketType = "stock"
	MarketTypeIndex  MarketType = "index"
	MarketTypeGlobal MarketType = "global"
)

// Direction is the directional claim of a prediction.
type Direction string

const (
	DirectionUp   Direction = "Up"
	DirectionDown Direction = "Down"
)

// PredictionType controls the reference-price strategy. Intraday predictions
// capture a reference at submission and run a fixed countdown; opening
// predictions defer the reference to the next market-session open.
type PredictionType string

const (
	PredictionTypeIntraday PredictionType = "intraday"
	PredictionTypeOpening  PredictionType = "opening"
)

// Outcome is the terminal resolution of a prediction. A nil *Outcome means
// the prediction is still pending.
type Outcome string

const (
	OutcomeCorrect         Outcome = "Correct"
	OutcomeIncorrect       Outcome = "Incorrect"
	OutcomeDataUnavailable Outcome = "Data Unavailable"
)

// Prediction is a time-locked directional market claim. Once an outcome is
// set the row is immutable.
type Prediction struct {
	ID     string
	UserID string

	Category    Category
	MarketType  MarketType
	AssetSymbol string
	AssetKey    string

	Direction Direction
	Title     string

	PredictionType  PredictionType
	DurationMinutes *int
	TargetDate      *time.Time
	ReferenceTime   time.Time

	ReferencePrice *float64
	FinalPrice     *float64
	DataSource     string

	Outcome        *Outcome
	EvaluationTime *time.Time

	CreatedAt time.Time
}

// UnlockTime returns the instant after which the prediction becomes eligible
// for evaluation: reference_time + duration when both are known, otherwise
// the stored target date. ok is false when neither is available.
func (p Prediction) UnlockTime() (t time.Time, ok bool) {
	if p.DurationMinutes != nil && !p.ReferenceTime.IsZero() {
		return p.ReferenceTime.Add(time.Duration(*p.DurationMinutes) * time.Minute), true
	}
	if p.TargetDate != nil {
		return *p.TargetDate, true
	}
	return time.Time{}, false
}

// Resolved reports whether a terminal outcome has been recorded.
func (p Prediction) Resolved() bool {
	return p.Outcome != nil
}

// ResolveDirection applies the outcome rule: Up wins strictly above the
// reference, Down wins strictly below it. Exact equality loses for either
// direction; there is no tie outcome.
func ResolveDirection(direction Direction, referencePrice, finalPrice float64) Outcome {
	if (direction == DirectionUp && finalPrice > referencePrice) ||
		(direction == DirectionDown && finalPrice < referencePrice) {
		return OutcomeCorrect
	}
	return OutcomeIncorrect
}
