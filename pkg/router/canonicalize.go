package router

import (
	"net/url"
	"strings"
)

// Canonical is a canonicalized location.
type Canonical struct {
	// Path always starts with "/" and has no trailing slash unless it is "/".
	Path string

	// Query is the raw query string without the leading "?".
	Query string
}

// String joins path and query back into a location.
func (c Canonical) String() string {
	if c.Query == "" {
		return c.Path
	}
	return c.Path + "?" + c.Query
}

// Canonicalize normalizes a location. A leading hash fragment marker is
// stripped, so "#/a" and "/a" are the same location.
//
// Multiple slashes are collapsed, "." segments dropped, ".." segments
// resolved and the trailing slash removed. Backslashes, NUL bytes, malformed
// percent escapes and ".." above the root are rejected. The query string is
// kept as is.
func Canonicalize(location string) (Canonical, error) {
	location = Fragment(location)
	if location == "" {
		return Canonical{Path: "/"}, nil
	}

	path, query, _ := strings.Cut(location, "?")

	if strings.Contains(path, "\\") {
		return Canonical{}, ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return Canonical{}, ErrNullByteInPath
	}
	if strings.Contains(path, "%") {
		if err := validatePercentEscapes(path); err != nil {
			return Canonical{}, err
		}
	}

	var out []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) == 0 {
				return Canonical{}, ErrPathEscapesRoot
			}
			out = out[:len(out)-1]
		default:
			out = append(out, seg)
		}
	}

	return Canonical{Path: "/" + strings.Join(out, "/"), Query: query}, nil
}

// Fragment returns the part of location after the first "#", or location
// itself when it has none.
func Fragment(location string) string {
	if _, frag, ok := strings.Cut(location, "#"); ok {
		return frag
	}
	return location
}

func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// decodeSegment unescapes one path segment. Parameter segments may not
// decode to a value containing "/".
func decodeSegment(segment string, catchAll bool) (string, error) {
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return "", ErrInvalidPercentEscape
	}
	if !catchAll && strings.Contains(decoded, "/") {
		return "", ErrEncodedSlashInSegment
	}
	return decoded, nil
}
