// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/common-repository/crowdaa-sync/internal/models"
)

func TestQueueAddAndTotal(t *testing.T) {
	q := &Queue{Collection: models.CollectionBadges}
	q.add(BucketOnlyWP, Op{Key: "wpid-1", LocalID: 1})
	q.add(BucketOnlyWP, Op{Key: "wpid-2", LocalID: 2})
	q.add(BucketRemoveWP, Op{Key: "m1", RemoteID: "b1"})

	assert.Len(t, q.OnlyWP, 2)
	assert.Len(t, q.RemoveWP, 1)
	assert.Equal(t, 3, q.Total())
}

func TestQueueMarshalDisabledSentinel(t *testing.T) {
	q := &Queue{Collection: models.CollectionArticles, PullDisabled: true}
	q.add(BucketOnlyWP, Op{Key: "wpid-7", LocalID: 7, Name: "Post"})

	data, err := json.Marshal(q)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))

	// Pull buckets render as the sentinel, push buckets as lists.
	assert.Equal(t, "disabled", out["only_api"])
	assert.Equal(t, "disabled", out["api_to_wp"])
	assert.Equal(t, "disabled", out["remove_wp"])

	ops, ok := out["only_wp"].([]any)
	require.True(t, ok)
	require.Len(t, ops, 1)
	assert.Equal(t, []any{}, out["wp_to_api"])
	assert.Equal(t, []any{}, out["remove_api"])
}
