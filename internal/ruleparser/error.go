package ruleparser

import "github.com/AdguardTeam/golibs/errors"

const (
	// ErrMissingName is returned when a rule line has no name field.
	ErrMissingName errors.Error = "missing name"

	// ErrMissingEvent is returned when a rule line has no event field.
	ErrMissingEvent errors.Error = "missing event"
)
