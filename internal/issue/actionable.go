// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

type (
	// ActionableError is an error with context for user-facing error messages.
	// It records what operation failed, which resource was involved, and
	// suggestions for how to fix the issue.
	//
	// Use the ErrorContext builder for convenient construction:
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("load module").
	//		WithResource("kvm_intel").
	//		WithSuggestion("Run as root").
	//		Wrap(originalErr).
	//		BuildError()
	ActionableError struct {
		// Operation describes what was being attempted (e.g., "load module").
		Operation string

		// Resource identifies the module, file, or kernel release involved (optional).
		Resource string

		// Suggestions provides hints on how to fix the issue (optional).
		Suggestions []string

		// Cause is the underlying error that triggered this error (optional).
		Cause error

		// Issue is the catalog entry explaining the failure, 0 when none applies.
		Issue Id
	}

	// ErrorContext is a builder for constructing ActionableError instances.
	ErrorContext struct {
		operation   string
		resource    string
		suggestions []string
		cause       error
	}
)

// NewErrorContext creates a new ErrorContext builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// Operations reported by ModuleError.
const (
	LoadModule   Operation = "load module"
	InsertModule Operation = "insert module"
	RemoveModule Operation = "remove module"
)

// Operation is the verb phrase of a failed module operation.
type Operation string

// hints are the one-line suggestions attached to module errors, keyed by
// the catalog entry the error classifies as.
var hints = map[Id][]string{
	ModuleNotFoundId:      {"Check the name with 'lmod deps <module>'", "Run 'depmod -a' after installing modules"},
	ModuleTreeMissingId:   {"List installed kernels with 'lmod kernels'"},
	PermissionDeniedId:    {"Run as root or grant CAP_SYS_MODULE"},
	ModuleInUseId:         {"Remove the holders listed by 'lmod lsmod' first"},
	ModuleNotLoadedId:     {"List loaded modules with 'lmod lsmod'"},
	ModuleAlreadyLoadedId: {"Remove the module first to reload it with new parameters"},
	InvalidModuleFormatId: {"Rebuild the module for the running kernel"},
	UnknownSymbolId:       {"Load by name with 'lmod modprobe' so dependencies are resolved"},
}

// ModuleError wraps err from a module operation on module. It records the
// catalog entry the error classifies as and the matching suggestions.
// It returns nil when err is nil.
func ModuleError(op Operation, module string, err error) *ActionableError {
	if err == nil {
		return nil
	}
	id := Classify(err)
	if op == RemoveModule {
		id = ClassifyRemove(err)
	}
	return &ActionableError{
		Operation:   string(op),
		Resource:    module,
		Suggestions: slices.Clone(hints[id]),
		Cause:       err,
		Issue:       id,
	}
}

// Error returns "failed to <operation>[: <resource>][: <cause>]".
func (e *ActionableError) Error() string {
	parts := make([]string, 0, 3)
	parts = append(parts, "failed to "+e.Operation)
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause so errno values stay reachable
// through errors.Is.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format renders Error followed by one bulleted line per suggestion. The
// verbose form appends the numbered error chain.
func (e *ActionableError) Format(verbose bool) string {
	var msg strings.Builder
	msg.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		msg.WriteByte('\n')
	}
	for _, suggestion := range e.Suggestions {
		msg.WriteString("\n  • " + suggestion)
	}

	if !verbose || e.Cause == nil {
		return msg.String()
	}
	msg.WriteString("\n\nError chain:")
	for depth, err := 1, e.Cause; err != nil; depth, err = depth+1, errors.Unwrap(err) {
		fmt.Fprintf(&msg, "\n  %d. %s", depth, err)
	}
	return msg.String()
}

// WithOperation sets the operation being performed, as a verb phrase like
// "load module" or "remove module".
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.operation = op
	return c
}

// WithResource sets the resource involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.resource = res
	return c
}

// WithSuggestion adds a suggestion. Can be called multiple times.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.suggestions = append(c.suggestions, sug)
	return c
}

// WithSuggestions adds multiple suggestions at once.
func (c *ErrorContext) WithSuggestions(sugs ...string) *ErrorContext {
	c.suggestions = append(c.suggestions, sugs...)
	return c
}

// Wrap wraps an underlying error as the cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.cause = err
	return c
}

// Build creates an ActionableError from the context.
// Returns nil if no operation is set (operation is required).
func (c *ErrorContext) Build() *ActionableError {
	if c.operation == "" {
		return nil
	}

	return &ActionableError{
		Operation:   c.operation,
		Resource:    c.resource,
		Suggestions: c.suggestions,
		Cause:       c.cause,
	}
}

// BuildError creates an ActionableError and returns it as an error interface.
// Returns nil if no operation is set.
func (c *ErrorContext) BuildError() error {
	ae := c.Build()
	if ae == nil {
		return nil
	}
	return ae
}
