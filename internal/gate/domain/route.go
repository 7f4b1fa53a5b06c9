// Package domain defines the gatekeeper's request-classification models:
// which paths are protected, how rejections are rendered, and which
// capability a request demands.
package domain

import "strings"

// DefaultProtectedPrefixes lists the path prefixes guarded by admission
// control when no override is configured.
var DefaultProtectedPrefixes = []string{
	"/dashboard",
	"/merchants",
	"/riders",
	"/finance",
	"/api",
}

// RouteClass is the classification of a request path.
type RouteClass struct {
	// Protected reports whether the path falls under a protected prefix.
	Protected bool
	// API reports whether rejections should be structured JSON rather than a
	// redirect to the login entry point.
	API bool
}

// Classifier decides whether a path is protected and how to reject it.
// Classification is a pure function of static configuration: the same path
// always yields the same class.
type Classifier struct {
	protectedPrefixes []string
	apiPrefix         string
}

// NewClassifier creates a Classifier for the given protected prefixes.
// Paths under apiPrefix receive structured JSON rejections; other protected
// paths are browser-rendered and get redirected to the login entry point.
func NewClassifier(protectedPrefixes []string, apiPrefix string) *Classifier {
	return &Classifier{
		protectedPrefixes: protectedPrefixes,
		apiPrefix:         apiPrefix,
	}
}

// Classify returns the RouteClass for a request path.
func (c *Classifier) Classify(path string) RouteClass {
	return RouteClass{
		Protected: c.isProtected(path),
		API:       matchPrefix(path, c.apiPrefix),
	}
}

func (c *Classifier) isProtected(path string) bool {
	for _, prefix := range c.protectedPrefixes {
		if matchPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// matchPrefix matches whole path segments: "/api" covers "/api" and
// "/api/orders" but not "/apiary".
func matchPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
