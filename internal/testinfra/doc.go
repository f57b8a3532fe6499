// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

// Package testinfra provides shared test fixtures: an in-memory
// WordPress database with the schema the gateway touches, and a fake
// Crowdaa API server backed by in-memory maps.
//
// Both fixtures register their cleanup on the test, so callers just do:
//
//	db := testinfra.NewWordPressDB(t)
//	api := testinfra.NewCrowdaaServer(t)
package testinfra
