package serviceerrors

import "errors"

var (
	ErrContextCanceled  = errors.New("context canceled")
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	ErrInvalidQuantity  = errors.New("quantity must be a positive integer")
	ErrProductNotFound  = errors.New("product not found")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrEmptyImport      = errors.New("import file has no data rows")
)
