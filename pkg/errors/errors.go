// Unified error handling for the G-code emitter
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrConfigType       ErrorCode = "CONFIG_TYPE"

	// Extruder set errors
	ErrExtruderUnknown ErrorCode = "EXTRUDER_UNKNOWN"
	ErrExtrusionAxis   ErrorCode = "EXTRUSION_AXIS"

	// Emitter contract violations
	ErrEmitterState ErrorCode = "EMITTER_STATE"

	// Scenario replay errors
	ErrScenario ErrorCode = "SCENARIO"
)

// HostError is the unified error type for the emitter
type HostError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Section is the config section or context
	Section string

	// Option is the config option name (if applicable)
	Option string

	// Err wraps the underlying error
	Err error

	// Context provides additional context
	Context map[string]interface{}
}

// Error implements the error interface
func (e *HostError) Error() string {
	where := e.Section
	if e.Option != "" {
		where = e.Option
	}
	msg := fmt.Sprintf("[%s:%s] %s", e.Code, where, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *HostError) Unwrap() error {
	return e.Err
}

// SetSection sets the context section
func (e *HostError) SetSection(section string) *HostError {
	e.Section = section
	return e
}

// SetOption sets the config option
func (e *HostError) SetOption(option string) *HostError {
	e.Option = option
	return e
}

// SetContext adds additional context
func (e *HostError) SetContext(key string, value interface{}) *HostError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new HostError
func New(code ErrorCode, message string) *HostError {
	return &HostError{Code: code, Message: message}
}

// Wrap wraps an existing error with a code and message
func Wrap(err error, code ErrorCode, message string) *HostError {
	return &HostError{Code: code, Message: message, Err: err}
}

// ConfigValidationError creates an error for an option that parsed but is
// not acceptable.
func ConfigValidationError(section, option string, reason string) *HostError {
	return New(ErrConfigValidation, fmt.Sprintf("option '%s' in section '%s': %s", option, section, reason)).
		SetSection(section).
		SetOption(option)
}

// ConfigOptionError wraps a lower-level parse failure of a single option.
func ConfigOptionError(section, option string, err error) *HostError {
	return Wrap(err, ErrConfigOption, fmt.Sprintf("option '%s' in section '%s'", option, section)).
		SetSection(section).
		SetOption(option)
}

// ConfigTypeError creates an error for config type conversion failure
func ConfigTypeError(section, option, value string, targetType string) *HostError {
	return New(ErrConfigType, fmt.Sprintf("option '%s' in section '%s': failed to parse '%s' as %s", option, section, value, targetType)).
		SetSection(section).
		SetOption(option)
}

// UnknownExtruderError reports an extruder id without configuration.
func UnknownExtruderError(id, configured int) *HostError {
	return New(ErrExtruderUnknown, fmt.Sprintf("extruder %d has no configuration (%d configured)", id, configured)).
		SetContext("extruder", id)
}

// ExtrusionAxisError reports a flavor that extrudes but has no axis letter.
func ExtrusionAxisError(flavor string) *HostError {
	return New(ErrExtrusionAxis, fmt.Sprintf("flavor %s requires an extrusion axis in absolute E mode", flavor)).
		SetOption("extrusion_axis")
}

// EmitterStateError reports a programming-contract violation in the emitter.
func EmitterStateError(message string) *HostError {
	return New(ErrEmitterState, message)
}

// ScenarioError reports a malformed replay step.
func ScenarioError(step int, message string) *HostError {
	return New(ErrScenario, fmt.Sprintf("step %d: %s", step, message)).SetContext("step", step)
}

// Is checks if any error in err's chain carries the given code
func Is(err error, code ErrorCode) bool {
	var hostErr *HostError
	for err != nil {
		if !stderrors.As(err, &hostErr) {
			return false
		}
		if hostErr.Code == code {
			return true
		}
		err = hostErr.Err
	}
	return false
}

// IsConfig checks if error is a config error
func IsConfig(err error) bool {
	return Is(err, ErrConfigOption) ||
		Is(err, ErrConfigValidation) ||
		Is(err, ErrConfigType)
}
