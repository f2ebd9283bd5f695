package services

import "errors"

var (
	// ErrPromotionRepositoryMissing indicates the promotion repository dependency is absent.
	ErrPromotionRepositoryMissing = errors.New("promotion service: repository is not configured")
	// ErrPromotionInvalidInput signals the caller supplied invalid input.
	ErrPromotionInvalidInput = errors.New("promotion service: invalid input")
	// ErrPromotionNotFound indicates no promotion exists for the provided code.
	ErrPromotionNotFound = errors.New("promotion service: promotion not found")
	// ErrPromotionUnavailable indicates the promotion backend cannot be reached.
	ErrPromotionUnavailable = errors.New("promotion service: unavailable")
)
