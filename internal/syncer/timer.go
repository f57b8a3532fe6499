// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import "time"

// budget tracks the wall-clock allowance of one run. It is checked
// before every entity operation; once exhausted, the rest of the run is
// abandoned while operations already applied stand.
type budget struct {
	deadline time.Time
	now      func() time.Time
}

func newBudget(max time.Duration) *budget {
	b := &budget{now: time.Now}
	if max > 0 {
		b.deadline = b.now().Add(max)
	}
	return b
}

// check returns a timeout error once the deadline has passed. A zero
// deadline never expires.
func (b *budget) check() error {
	if !b.deadline.IsZero() && b.now().After(b.deadline) {
		return timeoutErr("run budget exhausted")
	}
	return nil
}
