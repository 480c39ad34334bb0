package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorKind is the classification a transport or decode failure receives at
// the client boundary. Callers above that boundary only ever see classified
// errors, never the raw transport error.
type ErrorKind int

const (
	// KindOther covers failures that fit no other bucket (including local
	// cancellation).
	KindOther ErrorKind = iota
	// KindOffline means the local host has no connectivity.
	KindOffline
	// KindUpstreamUnavailable means the remote endpoint could not serve the
	// request. This is the default for unrecognized transport failures.
	KindUpstreamUnavailable
	// KindMalformedResponse means the response body failed to decode into
	// the expected shape.
	KindMalformedResponse
	// KindLocalIO means a cache read or write on durable storage failed.
	// It is handled where the I/O happened and never raises a status flag.
	KindLocalIO
)

func (k ErrorKind) String() string {
	switch k {
	case KindOffline:
		return "offline"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindMalformedResponse:
		return "malformed_response"
	case KindLocalIO:
		return "local_io"
	default:
		return "other"
	}
}

// ClassifiedError wraps a raw error with its classification.
type ClassifiedError struct {
	Kind ErrorKind
	Err  error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// NewClassifiedError wraps err with an explicit kind.
func NewClassifiedError(kind ErrorKind, err error) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Err: err}
}

// KindOf returns the classification carried by err, or KindOther when err
// was never classified.
func KindOf(err error) ErrorKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindOther
}

// offlineSignatures are transport error fragments that indicate the local
// host has no connectivity, as opposed to the upstream being unreachable.
var offlineSignatures = []string{
	"no such host",
	"network is unreachable",
	"network is down",
	"device or resource busy",
	"offline",
	"connection appears to be offline",
}

// Classify buckets a transport failure exactly once. Already-classified
// errors pass through unchanged so higher layers never re-wrap.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.Canceled) {
		return &ClassifiedError{Kind: KindOther, Err: err}
	}
	if isOffline(err) {
		return &ClassifiedError{Kind: KindOffline, Err: err}
	}
	// Everything else that reached the transport defaults to the upstream
	// being unavailable.
	return &ClassifiedError{Kind: KindUpstreamUnavailable, Err: err}
}

func isOffline(err error) bool {
	if errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.ENETDOWN) || errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range offlineSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
