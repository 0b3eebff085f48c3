package router

import (
	"fmt"
	"strings"
)

// routeNode is a node in the route tree.
type routeNode struct {
	// segment is the static path segment this node matches.
	segment string

	// paramName is the parameter name for :param and *catchall nodes.
	paramName  string
	isParam    bool
	isCatchAll bool

	// route is set on nodes that terminate a registered pattern.
	route *Route

	children      []*routeNode
	paramChild    *routeNode
	catchAllChild *routeNode
}

func newRouteNode(segment string) *routeNode {
	return &routeNode{segment: segment}
}

// findChild finds a static child with an exact segment match.
func (n *routeNode) findChild(segment string) *routeNode {
	for _, child := range n.children {
		if child.segment == segment {
			return child
		}
	}
	return nil
}

func (n *routeNode) addChild(segment string) *routeNode {
	if child := n.findChild(segment); child != nil {
		return child
	}
	child := newRouteNode(segment)
	n.children = append(n.children, child)
	return child
}

// addParamChild returns the parameter child. Two patterns may not use
// different names for the parameter at the same position.
func (n *routeNode) addParamChild(name string) (*routeNode, error) {
	if n.paramChild != nil {
		if n.paramChild.paramName != name {
			return nil, fmt.Errorf("%w: :%s conflicts with :%s", ErrInvalidPattern, name, n.paramChild.paramName)
		}
		return n.paramChild, nil
	}
	child := newRouteNode("")
	child.isParam = true
	child.paramName = name
	n.paramChild = child
	return child, nil
}

func (n *routeNode) addCatchAllChild(name string) (*routeNode, error) {
	if n.catchAllChild != nil {
		if n.catchAllChild.paramName != name {
			return nil, fmt.Errorf("%w: *%s conflicts with *%s", ErrInvalidPattern, name, n.catchAllChild.paramName)
		}
		return n.catchAllChild, nil
	}
	child := newRouteNode("")
	child.isCatchAll = true
	child.paramName = name
	n.catchAllChild = child
	return child, nil
}

// insert adds route to the tree under its pattern.
func (n *routeNode) insert(route *Route) error {
	segments := splitPath(route.Path)
	current := n

	for i, seg := range segments {
		var err error
		switch {
		case strings.HasPrefix(seg, "*"):
			if i != len(segments)-1 {
				return fmt.Errorf("%w: %q: catch-all must be the last segment", ErrInvalidPattern, route.Path)
			}
			current, err = current.addCatchAllChild(seg[1:])
		case strings.HasPrefix(seg, ":"):
			current, err = current.addParamChild(seg[1:])
		default:
			current = current.addChild(seg)
		}
		if err != nil {
			return fmt.Errorf("%q: %w", route.Path, err)
		}
	}

	if current.route != nil {
		return fmt.Errorf("%w: %q and %q", ErrDuplicateRoute, current.route.Path, route.Path)
	}
	current.route = route
	return nil
}

// match finds the route for the given raw segments, filling params.
// Static children are tried first, then the parameter child, then the
// catch-all.
func (n *routeNode) match(segments []string, params map[string]string) (*routeNode, error) {
	if len(segments) == 0 {
		if n.route != nil {
			return n, nil
		}
		// An empty catch-all matches the bare prefix.
		if n.catchAllChild != nil && n.catchAllChild.route != nil {
			params[n.catchAllChild.paramName] = ""
			return n.catchAllChild, nil
		}
		return nil, nil
	}

	segment := segments[0]
	remaining := segments[1:]

	if child := n.findChild(segment); child != nil {
		if node, err := child.match(remaining, params); node != nil || err != nil {
			return node, err
		}
	}

	if n.paramChild != nil {
		value, err := decodeSegment(segment, false)
		if err != nil {
			return nil, err
		}
		params[n.paramChild.paramName] = value
		if node, err := n.paramChild.match(remaining, params); node != nil || err != nil {
			return node, err
		}
		delete(params, n.paramChild.paramName)
	}

	if n.catchAllChild != nil && n.catchAllChild.route != nil {
		value, err := decodeSegment(strings.Join(segments, "/"), true)
		if err != nil {
			return nil, err
		}
		params[n.catchAllChild.paramName] = value
		return n.catchAllChild, nil
	}

	return nil, nil
}

// splitPath splits a path into segments.
func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// validatePattern checks a route pattern before insertion.
func validatePattern(pattern string) error {
	if !strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("%w: %q must start with /", ErrInvalidPattern, pattern)
	}
	for _, seg := range splitPath(pattern) {
		switch {
		case seg == "":
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPattern, pattern)
		case seg == "." || seg == "..":
			return fmt.Errorf("%w: %q has a relative segment", ErrInvalidPattern, pattern)
		case (seg[0] == ':' || seg[0] == '*') && len(seg) == 1:
			return fmt.Errorf("%w: %q has an unnamed parameter", ErrInvalidPattern, pattern)
		}
	}
	return nil
}
