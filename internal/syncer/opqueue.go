// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import (
	"github.com/goccy/go-json"

	"github.com/common-repository/crowdaa-sync/internal/metrics"
	"github.com/common-repository/crowdaa-sync/internal/models"
)

// Bucket names the six operation classes of a diff. An entity lands in
// at most one bucket per run.
type Bucket string

const (
	BucketOnlyWP    Bucket = "only_wp"    // exists locally only: create on the API
	BucketWPToAPI   Bucket = "wp_to_api"  // local side changed: update the API
	BucketOnlyAPI   Bucket = "only_api"   // exists remotely only: create locally
	BucketAPIToWP   Bucket = "api_to_wp"  // remote side changed: update locally
	BucketRemoveAPI Bucket = "remove_api" // local copy gone: delete on the API
	BucketRemoveWP  Bucket = "remove_wp"  // remote copy gone: delete locally
)

// Op is one queued operation. Key is the identity-map id, or the
// wpid-<ID> synthetic key for local entities never synced before.
type Op struct {
	Key      string `json:"key"`
	LocalID  int64  `json:"wp_id,omitempty"`
	RemoteID string `json:"api_id,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Queue is the classified diff of one collection. Buckets belonging to
// a disabled direction stay empty and render as the string "disabled"
// so operators can tell "nothing to do" from "not looked at".
type Queue struct {
	Collection models.Collection
	OnlyWP     []Op
	WPToAPI    []Op
	OnlyAPI    []Op
	APIToWP    []Op
	RemoveAPI  []Op
	RemoveWP   []Op

	PushDisabled bool
	PullDisabled bool
}

// add appends an op to a bucket.
func (q *Queue) add(b Bucket, op Op) {
	switch b {
	case BucketOnlyWP:
		q.OnlyWP = append(q.OnlyWP, op)
	case BucketWPToAPI:
		q.WPToAPI = append(q.WPToAPI, op)
	case BucketOnlyAPI:
		q.OnlyAPI = append(q.OnlyAPI, op)
	case BucketAPIToWP:
		q.APIToWP = append(q.APIToWP, op)
	case BucketRemoveAPI:
		q.RemoveAPI = append(q.RemoveAPI, op)
	case BucketRemoveWP:
		q.RemoveWP = append(q.RemoveWP, op)
	}
}

// Total counts queued operations across all buckets.
func (q *Queue) Total() int {
	return len(q.OnlyWP) + len(q.WPToAPI) + len(q.OnlyAPI) +
		len(q.APIToWP) + len(q.RemoveAPI) + len(q.RemoveWP)
}

// record publishes bucket sizes to metrics.
func (q *Queue) record() {
	for b, ops := range q.buckets() {
		metrics.OpQueueSize.WithLabelValues(string(q.Collection), string(b)).
			Set(float64(len(ops)))
	}
}

func (q *Queue) buckets() map[Bucket][]Op {
	return map[Bucket][]Op{
		BucketOnlyWP:    q.OnlyWP,
		BucketWPToAPI:   q.WPToAPI,
		BucketOnlyAPI:   q.OnlyAPI,
		BucketAPIToWP:   q.APIToWP,
		BucketRemoveAPI: q.RemoveAPI,
		BucketRemoveWP:  q.RemoveWP,
	}
}

// pushBuckets and pullBuckets split the six classes by the direction
// that executes them.
var (
	pushBuckets = []Bucket{BucketOnlyWP, BucketWPToAPI, BucketRemoveAPI}
	pullBuckets = []Bucket{BucketOnlyAPI, BucketAPIToWP, BucketRemoveWP}
)

// MarshalJSON renders each bucket as its op list, or the "disabled"
// sentinel when its direction was not evaluated.
func (q *Queue) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 6)
	for b, ops := range q.buckets() {
		if ops == nil {
			ops = []Op{}
		}
		out[string(b)] = ops
	}
	if q.PushDisabled {
		for _, b := range pushBuckets {
			out[string(b)] = "disabled"
		}
	}
	if q.PullDisabled {
		for _, b := range pullBuckets {
			out[string(b)] = "disabled"
		}
	}
	return json.Marshal(out)
}
