package services

import "errors"

var (
	ErrCardQuota          = errors.New("credit card limit reached")
	ErrTooFewTransactions = errors.New("not enough transactions to analyze")
	ErrAdviceUnavailable  = errors.New("advice is not configured")
)
