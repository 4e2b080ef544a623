// Copyright 2025 John Wang. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netlogomcp

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration indicates the engine runtime locations are unset or
// invalid. This is an environment precondition, fatal at startup or on
// first use; it is never retried.
var ErrConfiguration = errors.New("configuration error")

// ErrNoModelLoaded is returned when an operation that requires a loaded
// model is called before open_model or create_model. The caller recovers
// by loading a model and calling again.
var ErrNoModelLoaded = errors.New("no model loaded")

// ErrNotFound is returned when a resource or model lookup by name misses.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates malformed call arguments, caught before any
// engine call is made.
var ErrValidation = errors.New("invalid argument")

// EngineError reports that NetLogo rejected or failed an instruction or
// reporter expression. Diagnostic carries the engine's own compiler or
// runtime error text verbatim (minus the Java exception class wrapper) so
// the calling AI can correct its generated code.
//
// An EngineError is never retried automatically: the failing instruction
// may have already mutated world state before erroring partway.
type EngineError struct {
	Diagnostic string
}

func (e *EngineError) Error() string {
	return "netlogo error: " + e.Diagnostic
}

// javaPrefixes are the exception wrappers NetLogo puts in front of its
// actual diagnostic text.
var javaPrefixes = []string{
	"org.nlogo.core.CompilerException: ",
	"org.nlogo.nvm.RuntimePrimitiveException: ",
	"org.nlogo.api.LogoException: ",
}

// newEngineError builds an EngineError from the engine's raw error text,
// stripping the Java exception class prefix when present.
func newEngineError(raw string) *EngineError {
	for _, p := range javaPrefixes {
		if strings.HasPrefix(raw, p) {
			raw = strings.TrimPrefix(raw, p)
			break
		}
	}
	return &EngineError{Diagnostic: raw}
}

// syntaxTip is appended to engine errors surfaced through the tool
// surface, pointing the caller at the bundled reference docs.
const syntaxTip = "\n\nTip: consult the netlogo://docs/primitives resource for correct NetLogo syntax."

// shapeToolError converts internal errors into the message surfaced to
// the MCP caller, keeping the error kind recognizable from the text.
func shapeToolError(err error) error {
	var engErr *EngineError
	switch {
	case errors.As(err, &engErr):
		return fmt.Errorf("%s%s", engErr.Error(), syntaxTip)
	case errors.Is(err, ErrNoModelLoaded):
		return fmt.Errorf("%w: use open_model or create_model first", ErrNoModelLoaded)
	default:
		return err
	}
}
