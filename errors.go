package module

import "github.com/pkg/errors"

// ErrorKind classifies a ModuleError without forcing callers to match on
// Go error values, per spec.md §7.
type ErrorKind int

const (
	ErrNoModule ErrorKind = iota
	ErrNoStream
	ErrEnabledStream
	ErrEnableMultipleStreams
	ErrModifyLimitExceeded
	ErrConflict
	ErrResolve
	ErrIO
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNoModule:
		return "no such module"
	case ErrNoStream:
		return "no such stream"
	case ErrEnabledStream:
		return "no stream enabled"
	case ErrEnableMultipleStreams:
		return "cannot enable multiple streams"
	case ErrModifyLimitExceeded:
		return "module state change limit for this transaction exceeded"
	case ErrConflict:
		return "conflicting module metadata"
	case ErrResolve:
		return "module resolution failed"
	case ErrIO:
		return "module persistence I/O error"
	default:
		return "unknown module error"
	}
}

// ModuleError is a classified error type built by the constructors below.
// It always carries a Kind for programmatic dispatch and a Module name
// where one is applicable. The Container's mutators do not return it: they
// pass through the persist package's errors (persist.ErrEnableMultipleStreams,
// persist.ErrModifyLimitExceeded).
type ModuleError struct {
	kind   ErrorKind
	module string
	cause  error
}

func newModuleError(kind ErrorKind, module string, cause error) *ModuleError {
	return &ModuleError{kind: kind, module: module, cause: cause}
}

func (e *ModuleError) Kind() ErrorKind { return e.kind }
func (e *ModuleError) Module() string  { return e.module }

func (e *ModuleError) Error() string {
	msg := e.kind.String()
	if e.module != "" {
		msg += ": " + e.module
	}
	if e.cause != nil {
		return msg + ": " + e.cause.Error()
	}
	return msg
}

func (e *ModuleError) Unwrap() error { return e.cause }

// NoModule reports that name is not known to the container.
func NoModule(name string) error {
	return newModuleError(ErrNoModule, name, nil)
}

// NoStream reports that stream does not exist for name.
func NoStream(name, stream string) error {
	return newModuleError(ErrNoStream, name, errors.Errorf("stream %q", stream))
}

// EnabledStreamMissing reports that no stream is currently enabled for name.
func EnabledStreamMissing(name string) error {
	return newModuleError(ErrEnabledStream, name, nil)
}

// EnableMultipleStreams reports an attempt to enable a second stream of name.
func EnableMultipleStreams(name, current, requested string) error {
	return newModuleError(ErrEnableMultipleStreams, name,
		errors.Errorf("stream %q already enabled, cannot also enable %q", current, requested))
}

// ModifyLimitExceeded reports that name's per-transaction change budget is exhausted.
func ModifyLimitExceeded(name string, limit uint32) error {
	return newModuleError(ErrModifyLimitExceeded, name, errors.Errorf("limit %d", limit))
}

// Conflict reports irreconcilable metadata for name.
func Conflict(name string, cause error) error {
	return newModuleError(ErrConflict, name, cause)
}

// ResolveError wraps a solver failure for name (or "" for a container-wide failure).
func ResolveError(name string, cause error) error {
	return newModuleError(ErrResolve, name, cause)
}

// IOError wraps a persistence failure.
func IOError(cause error) error {
	return newModuleError(ErrIO, "", cause)
}
