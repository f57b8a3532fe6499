// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHashBadgeNormalizesDefaults(t *testing.T) {
	// Absent management and access hash the same as their defaults, so a
	// local level with no badge settings matches a default remote badge.
	assert.Equal(t,
		HashBadge("Gold", "", ""),
		HashBadge("Gold", "private-internal", "hidden"))

	assert.NotEqual(t,
		HashBadge("Gold", "", ""),
		HashBadge("Gold", "request", "public"))
	assert.NotEqual(t, HashBadge("Gold", "", ""), HashBadge("Silver", "", ""))
}

func TestHashCategoryPermOrderInsensitive(t *testing.T) {
	a := HashCategory("News", "Root", []string{"Gold", "Silver"}, true)
	b := HashCategory("News", "Root", []string{"Silver", "Gold"}, true)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, HashCategory("News", "Root", []string{"Gold"}, true))
	assert.NotEqual(t, a, HashCategory("News", "Root", []string{"Gold", "Silver"}, false))
	assert.NotEqual(t, a, HashCategory("News", "Other", []string{"Gold", "Silver"}, true))
}

func TestHashCategoryNilAndEmptyPermsEqual(t *testing.T) {
	assert.Equal(t,
		HashCategory("News", "", nil, false),
		HashCategory("News", "", []string{}, false))
}

func TestHashArticleStable(t *testing.T) {
	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	a := HashArticle("Title", "Body", []string{"B", "A"}, true, start, end)
	b := HashArticle("Title", "Body", []string{"A", "B"}, true, start, end)
	assert.Equal(t, a, b)

	// The same instant in another zone hashes identically.
	c := HashArticle("Title", "Body", []string{"A", "B"}, true,
		start.In(time.FixedZone("X", 3600)), end)
	assert.Equal(t, a, c)

	assert.NotEqual(t, a, HashArticle("Title", "Body", []string{"A", "B"}, true, start.Add(time.Second), end))
	assert.NotEqual(t, a, HashArticle("Title", "Other", []string{"A", "B"}, true, start, end))
}

func TestHashArticleZeroEventTimes(t *testing.T) {
	// Non-events carry zero times; they must not collide with an event at
	// the zero instant nor vary with how the zero was produced.
	plain := HashArticle("T", "C", nil, false, time.Time{}, time.Time{})
	assert.Equal(t, plain, HashArticle("T", "C", []string{}, false, time.Time{}, time.Time{}))
	assert.NotEqual(t, plain, HashArticle("T", "C", nil, true, time.Time{}, time.Time{}))
}
