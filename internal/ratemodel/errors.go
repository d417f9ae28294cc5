package ratemodel

import (
	"errors"
	"fmt"
)

var (
	// ErrRange is returned when a multiplier bound is violated.
	ErrRange = errors.New("multiplier out of range")
	// ErrUnauthorized is returned when the caller is not allowed to mutate a field.
	ErrUnauthorized = errors.New("not authorized")
	// ErrNotConfigurator is returned for configuration calls from anyone but the configurator.
	ErrNotConfigurator = fmt.Errorf("%w: caller not pool configurator", ErrUnauthorized)
	// ErrInvalidParams is returned for inconsistent or missing curve parameters.
	ErrInvalidParams = errors.New("invalid rate model parameters")
)
