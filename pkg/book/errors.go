package book

import "errors"

var (
	// ErrOrderNotFound means the id was never assigned.
	ErrOrderNotFound = errors.New("order not found")

	// ErrSameAsset rejects an order whose make and take asset coincide.
	ErrSameAsset = errors.New("make and take asset must differ")

	// ErrInvalidAmount rejects non-positive make, take, or fill amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidEndDate rejects an end date not strictly after now.
	ErrInvalidEndDate = errors.New("end date must be after current time")

	// ErrUnauthorized means the caller is not the order's maker.
	ErrUnauthorized = errors.New("caller is not the maker")

	// ErrOrderExpired rejects fills at or past the order's end date.
	ErrOrderExpired = errors.New("order expired")

	// ErrOrderClosed rejects operations on filled or cancelled orders.
	ErrOrderClosed = errors.New("order already closed")
)
