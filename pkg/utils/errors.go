package utils

import "errors"

var (
	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrAmountPrecision = errors.New("amount has more decimals than supported")
	ErrAmountOverflow  = errors.New("amount exceeds 64-bit range")
)
