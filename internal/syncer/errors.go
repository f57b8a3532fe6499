// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import (
	"errors"
	"fmt"
)

// Kind classifies a sync failure. Entity failures are recorded and the
// run moves on; Fatal aborts the current phase; Timeout aborts the rest
// of the run while already committed operations stand.
type Kind int

const (
	KindEntity Kind = iota
	KindSkip
	KindFatal
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindSkip:
		return "skip"
	case KindFatal:
		return "fatal"
	case KindTimeout:
		return "timeout"
	default:
		return "entity"
	}
}

// OpError is a classified sync failure.
type OpError struct {
	Kind Kind
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// entityErr wraps a per-entity failure the run survives.
func entityErr(format string, args ...any) error {
	return &OpError{Kind: KindEntity, Err: fmt.Errorf(format, args...)}
}

// fatalErr wraps a failure that aborts the run.
func fatalErr(format string, args ...any) error {
	return &OpError{Kind: KindFatal, Err: fmt.Errorf(format, args...)}
}

// timeoutErr signals the run budget is exhausted.
func timeoutErr(format string, args ...any) error {
	return &OpError{Kind: KindTimeout, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the failure kind, defaulting to Fatal for unclassified
// errors.
func KindOf(err error) Kind {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return KindFatal
}

// IsTimeout reports whether err carries the timeout kind.
func IsTimeout(err error) bool {
	return err != nil && KindOf(err) == KindTimeout
}
