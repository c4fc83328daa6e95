package model

import "errors"

// Common errors used across the application
var (
	// Progress record errors
	ErrAlreadyInitialized  = errors.New("progress record already exists")
	ErrRecordNotFound      = errors.New("progress record not found")
	ErrIdentityMismatch    = errors.New("caller identity does not match record owner")
	ErrInvalidLessonID     = errors.New("invalid lesson id")
	ErrOutOfCapacity       = errors.New("progress record is out of capacity")
	ErrRewardsDisabled     = errors.New("reward awards are not enabled for this layout")
	ErrAccumulatorOverflow = errors.New("award would overflow accumulator")

	// Identity errors
	ErrInvalidIdentity = errors.New("invalid identity")

	// Layout errors
	ErrInvalidLayout = errors.New("invalid record layout")
	ErrCorruptRecord = errors.New("corrupt progress record")

	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrUsernameTaken   = errors.New("username already taken")
)
