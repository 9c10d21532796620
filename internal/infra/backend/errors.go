package backend

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Class determines whether retrying a failed call could plausibly succeed.
type Class int

const (
	ClassPermanent Class = iota // validation, auth, not-found, 4xx
	ClassTransient              // network failures, timeouts, 502/503/504
)

func (c Class) String() string {
	if c == ClassTransient {
		return "transient"
	}
	return "permanent"
}

// StatusError is an HTTP-level failure from the REST backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"timeout",
	"timed out",
	"deadline exceeded",
	"no such host",
	"network is unreachable",
	"temporary failure",
	"502", "bad gateway",
	"503", "service unavailable",
	"504", "gateway timeout",
}

// Classify determines the class of an error. Only transient network
// indicators are retryable; anything else fails the call immediately.
func Classify(err error) Class {
	if err == nil {
		return ClassTransient // should not happen
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case 502, 503, 504:
			return ClassTransient
		default:
			return ClassPermanent
		}
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ClassTransient
	}

	s := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(s, pattern) {
			return ClassTransient
		}
	}

	return ClassPermanent
}
