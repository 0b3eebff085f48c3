package router

import "errors"

// Path canonicalization errors. All of them wrap ErrInvalidPath.
var (
	ErrInvalidPath           = errors.New("router: invalid path")
	ErrBackslashInPath       = pathError("path contains backslash")
	ErrNullByteInPath        = pathError("path contains null byte")
	ErrInvalidPercentEscape  = pathError("invalid percent escape sequence")
	ErrPathEscapesRoot       = pathError("path escapes root via ..")
	ErrEncodedSlashInSegment = pathError("encoded slash (%2F) in parameter segment")
)

// Route table errors.
var (
	// ErrDuplicateRoute is returned by New when two routes share a pattern
	// or a name.
	ErrDuplicateRoute = errors.New("router: duplicate route")

	// ErrInvalidPattern is returned by New for malformed route patterns.
	ErrInvalidPattern = errors.New("router: invalid route pattern")

	// ErrClosed is returned by navigation methods after Close.
	ErrClosed = errors.New("router: closed")
)

type invalidPathError struct {
	msg string
}

func pathError(msg string) error {
	return &invalidPathError{msg: msg}
}

func (e *invalidPathError) Error() string {
	return "router: " + e.msg
}

func (e *invalidPathError) Is(target error) bool {
	return target == ErrInvalidPath
}
