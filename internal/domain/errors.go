package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrActivePredictionExists = errors.New("active prediction exists")
	ErrMarketClosed           = errors.New("market closed")
	ErrCutoffPassed           = errors.New("opening cutoff passed")
	ErrPriceUnavailable       = errors.New("price unavailable")
	ErrAlreadyEvaluated       = errors.New("already evaluated")
	ErrUnknownCategory        = errors.New("unknown category")
	ErrInvalidPrediction      = errors.New("invalid prediction parameters")
)
