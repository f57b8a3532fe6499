// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package logging

import (
	"strings"
	"sync"
)

// Recorder is a fixed-size ring buffer of recently emitted log lines. It
// implements io.Writer so it can be attached to the zerolog output chain,
// and backs the admin log-tail endpoint.
type Recorder struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

// NewRecorder returns a Recorder retaining the last size lines.
func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = 1
	}
	return &Recorder{lines: make([]string, size)}
}

// Write records one log line. zerolog delivers exactly one event per call.
func (r *Recorder) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	r.mu.Lock()
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
	return len(p), nil
}

// Tail returns up to n recorded lines, newest first.
func (r *Recorder) Tail(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := r.next
	if r.full {
		count = len(r.lines)
	}
	if n > count {
		n = count
	}
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.lines)) % len(r.lines)
		out = append(out, r.lines[idx])
	}
	return out
}
