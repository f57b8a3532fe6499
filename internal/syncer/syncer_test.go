// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/common-repository/crowdaa-sync/internal/config"
	"github.com/common-repository/crowdaa-sync/internal/crowdaa"
	"github.com/common-repository/crowdaa-sync/internal/mapstore"
	"github.com/common-repository/crowdaa-sync/internal/models"
	"github.com/common-repository/crowdaa-sync/internal/permissions"
	"github.com/common-repository/crowdaa-sync/internal/testinfra"
	"github.com/common-repository/crowdaa-sync/internal/wordpress"
)

// fixture wires a full pipeline: real SQLite WordPress store, fake
// Crowdaa API, in-memory identity map.
type fixture struct {
	syncer *Syncer
	wp     *wordpress.Store
	remote *testinfra.CrowdaaServer
	maps   *mapstore.Store
	cfg    *config.Config
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()

	remote := testinfra.NewCrowdaaServer(t)
	wp := wordpress.NewWithDB(testinfra.NewWordPressDB(t))
	maps := newTestMapStore(t)

	cfg := &config.Config{
		Crowdaa: config.CrowdaaConfig{
			BaseURL:   remote.URL(),
			APIKey:    "test-key",
			AuthToken: "test-token",
			Timeout:   5 * time.Second,
		},
		WordPress: config.WordPressConfig{
			MediaDir:          t.TempDir(),
			PermissionsPlugin: "pmpro",
		},
		Sync: config.SyncConfig{
			PushEnabled:      true,
			PullEnabled:      true,
			CategoryMode:     config.FilterBlacklist,
			MaxDuration:      time.Minute,
			ArticleBatchSize: 100,
			MetaVersion:      "2",
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	perms := permissions.Select(cfg.WordPress.PermissionsPlugin, wp)
	return &fixture{
		syncer: New(wp, crowdaa.New(&cfg.Crowdaa), maps, perms, cfg),
		wp:     wp,
		remote: remote,
		maps:   maps,
		cfg:    cfg,
	}
}

// seedDefaultImage creates the fallback feed picture: a file in the
// media dir, its attachment row and the option pointing at it.
func (f *fixture) seedDefaultImage(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(f.cfg.WordPress.MediaDir, "default.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0o644))
	attID, err := f.wp.CreateAttachment(ctx, 0, "default.jpg", "image/jpeg")
	require.NoError(t, err)
	require.NoError(t, f.wp.SetOption(ctx, wordpress.OptionDefaultImageID, strconv.FormatInt(attID, 10)))
}

func TestRunPushesLocalContent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedDefaultImage(t)

	_, err := f.wp.CreatePMProLevel(ctx, "Gold")
	require.NoError(t, err)
	catID, err := f.wp.CreateCategory(ctx, "News", "news", 0)
	require.NoError(t, err)
	postID, err := f.wp.CreateArticle(ctx, "Hello", "World", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, err)
	require.NoError(t, f.wp.SetArticleCategories(ctx, postID, []int64{catID}))

	res, err := f.syncer.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	assert.Equal(t, OutcomeSuccess, res.Outcome)

	// Everything landed on the remote side.
	require.Len(t, f.remote.Badges, 1)
	require.Len(t, f.remote.Categories, 1)
	require.Len(t, f.remote.Articles, 1)
	for _, a := range f.remote.Articles {
		assert.Equal(t, "Hello", a.Title)
		assert.Equal(t, "World", a.Content)
		require.Len(t, a.Categories, 1)
		assert.NotEmpty(t, a.FeedPicture, "default image becomes the feed picture")
	}

	// The post carries its sync state.
	remoteID, err := f.wp.PostMeta(ctx, postID, wordpress.MetaAPIPostID)
	require.NoError(t, err)
	assert.NotEmpty(t, remoteID)
	needs, err := f.wp.PostMeta(ctx, postID, wordpress.MetaNeedsSync)
	require.NoError(t, err)
	assert.Equal(t, wordpress.NeedsSyncNo, needs)

	entry, err := f.maps.GetByLocal(models.CollectionArticles, postID)
	require.NoError(t, err)
	assert.Equal(t, remoteID, entry.RemoteID)

	// The second run converges: nothing left to do.
	res, err = f.syncer.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	assert.Zero(t, res.Badges.Total())
	assert.Zero(t, res.Categories.Total())
	assert.Zero(t, res.Articles.Total())
}

func TestRunPullsRemoteContent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedDefaultImage(t)

	f.remote.AddBadge(crowdaa.Badge{Name: "Silver"})
	catID := f.remote.AddCategory(crowdaa.Category{Name: "Promo"})
	f.remote.AddArticle(crowdaa.Article{
		Title:      "Remote Post",
		Content:    "Remote body",
		Categories: []string{catID},
		Media:      []crowdaa.ArticleMedia{{ID: "m1", Kind: "image", URL: "https://cdn.example/m1.jpg"}},
		UpdatedAt:  time.Now().UTC(),
	})

	// Run one maps the badge and category; the article waits until its
	// category mapping exists.
	res, err := f.syncer.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	levels, err := f.wp.PMProLevels(ctx)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, "Silver", levels[0].Name)

	cats, err := f.wp.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Promo", cats[0].Name)

	posts, err := f.wp.Articles(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts, "article skipped until its category is mapped")

	// Run two pulls the article through the now-mapped category.
	res, err = f.syncer.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	posts, err = f.wp.Articles(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Remote Post", posts[0].Title)

	postCats, err := f.wp.ArticleCategories(ctx, posts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{cats[0].ID}, postCats)

	atts, err := f.wp.Attachments(ctx, posts[0].ID)
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "https://cdn.example/m1.jpg", atts[0].URL)
}

func TestRunDeletesRemoteWhenLocalGone(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedDefaultImage(t)

	remoteID := f.remote.AddArticle(crowdaa.Article{Title: "Orphan", UpdatedAt: time.Now().UTC().Add(-time.Hour)})
	require.NoError(t, f.maps.Put(&mapstore.Entry{
		Collection: models.CollectionArticles,
		LocalID:    999,
		RemoteID:   remoteID,
	}))

	res, err := f.syncer.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	assert.Empty(t, f.remote.Articles)
	_, err = f.maps.GetByRemote(models.CollectionArticles, remoteID)
	assert.ErrorIs(t, err, mapstore.ErrNotFound)
}

func TestRunDeletesLocalWhenRemoteGone(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedDefaultImage(t)

	postID, err := f.wp.CreateArticle(ctx, "Stale", "Body", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.maps.Put(&mapstore.Entry{
		Collection: models.CollectionArticles,
		LocalID:    postID,
		RemoteID:   "gone-remote",
	}))

	res, err := f.syncer.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	_, err = f.wp.Article(ctx, postID)
	assert.ErrorIs(t, err, wordpress.ErrNotFound)
	_, err = f.maps.GetByLocal(models.CollectionArticles, postID)
	assert.ErrorIs(t, err, mapstore.ErrNotFound)
}

func TestRunConflictNewerRemoteWins(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedDefaultImage(t)

	catID, err := f.wp.CreateCategory(ctx, "News", "news", 0)
	require.NoError(t, err)
	remoteCatID := f.remote.AddCategory(crowdaa.Category{Name: "News"})
	catHash := HashCategory("News", "", nil, false)
	require.NoError(t, f.maps.Put(&mapstore.Entry{
		Collection: models.CollectionCategories,
		LocalID:    catID,
		RemoteID:   remoteCatID,
		LocalHash:  catHash,
		RemoteHash: catHash,
	}))

	localModified := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	postID, err := f.wp.CreateArticle(ctx, "Local Title", "Local body", localModified)
	require.NoError(t, err)
	require.NoError(t, f.wp.SetArticleCategories(ctx, postID, []int64{catID}))

	remoteID := f.remote.AddArticle(crowdaa.Article{
		Title:      "Remote Title",
		Content:    "Remote body",
		Categories: []string{remoteCatID},
		UpdatedAt:  time.Now().UTC(),
	})
	// Stale hashes on both sides mark both as changed.
	require.NoError(t, f.maps.Put(&mapstore.Entry{
		Collection: models.CollectionArticles,
		LocalID:    postID,
		RemoteID:   remoteID,
		LocalHash:  "stale",
		RemoteHash: "stale",
	}))

	res, err := f.syncer.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	// The strictly newer remote side won: the local post was rewritten
	// and nothing was published remotely.
	post, err := f.wp.Article(ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, "Remote Title", post.Title)
	assert.Equal(t, "Remote body", post.Content)
	assert.Empty(t, f.remote.Published)
	assert.Empty(t, res.Articles.WPToAPI)
	require.Len(t, res.Articles.APIToWP, 1)
}

func TestRunSkipsArticleOutsideFilter(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Sync.CategoryMode = config.FilterWhitelist
		cfg.Sync.CategoryList = []int64{} // nothing allowed
	})
	ctx := context.Background()
	f.seedDefaultImage(t)

	catID, err := f.wp.CreateCategory(ctx, "Hidden", "hidden", 0)
	require.NoError(t, err)
	postID, err := f.wp.CreateArticle(ctx, "Unsynced", "Body", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.wp.SetArticleCategories(ctx, postID, []int64{catID}))

	res, err := f.syncer.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	assert.Empty(t, f.remote.Articles)
	assert.Empty(t, f.remote.Categories)
	assert.Zero(t, res.Articles.Total())
}

func TestRunNeedsSyncFlagForcesPush(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedDefaultImage(t)

	catID, err := f.wp.CreateCategory(ctx, "News", "news", 0)
	require.NoError(t, err)
	postID, err := f.wp.CreateArticle(ctx, "Flagged", "Body", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.wp.SetArticleCategories(ctx, postID, []int64{catID}))

	res, err := f.syncer.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, f.remote.Articles, 1)

	// needs_sync=no post stays put even when flagged lists include it.
	res, err = f.syncer.Run(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Zero(t, res.Articles.Total())

	// Flipping the flag forces a push despite unchanged content and a
	// non-advancing watermark.
	require.NoError(t, f.wp.SetPostMeta(ctx, postID, wordpress.MetaNeedsSync, wordpress.NeedsSyncYes))
	res, err = f.syncer.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Articles.WPToAPI, 1)

	needs, err := f.wp.PostMeta(ctx, postID, wordpress.MetaNeedsSync)
	require.NoError(t, err)
	assert.Equal(t, wordpress.NeedsSyncNo, needs)
	assert.Len(t, f.remote.Published, 1, "update went through draft and publish")
}

func TestRunFeedCategoriesControlFeedVisibility(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedDefaultImage(t)

	feedCat, err := f.wp.CreateCategory(ctx, "News", "news", 0)
	require.NoError(t, err)
	otherCat, err := f.wp.CreateCategory(ctx, "Archive", "archive", 0)
	require.NoError(t, err)

	cfg := *f.cfg
	cfg.Sync.FeedCategories = []int64{feedCat}
	engine := New(f.wp, crowdaa.New(&cfg.Crowdaa), f.maps, permissions.Select(cfg.WordPress.PermissionsPlugin, f.wp), &cfg)

	visibleID, err := f.wp.CreateArticle(ctx, "On Feed", "Body", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.wp.SetArticleCategories(ctx, visibleID, []int64{feedCat}))
	hiddenID, err := f.wp.CreateArticle(ctx, "Off Feed", "Body", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.wp.SetArticleCategories(ctx, hiddenID, []int64{otherCat}))

	res, err := engine.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, f.remote.Articles, 2)

	for _, a := range f.remote.Articles {
		switch a.Title {
		case "On Feed":
			assert.False(t, a.HideFromFeed)
		case "Off Feed":
			assert.True(t, a.HideFromFeed, "articles outside the feed list stay off the feed")
		default:
			t.Errorf("unexpected article %q", a.Title)
		}
	}
}

func TestRunVersionBumpForcesRepush(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seedDefaultImage(t)

	catID, err := f.wp.CreateCategory(ctx, "News", "news", 0)
	require.NoError(t, err)
	postID, err := f.wp.CreateArticle(ctx, "Versioned", "Body", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, err)
	require.NoError(t, f.wp.SetArticleCategories(ctx, postID, []int64{catID}))

	res, err := f.syncer.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, f.remote.Articles, 1)

	// A new deployment with a bumped logic version shares the stores.
	bumped := *f.cfg
	bumped.Sync.MetaVersion = "3"
	next := New(f.wp, crowdaa.New(&bumped.Crowdaa), f.maps, permissions.Select(bumped.WordPress.PermissionsPlugin, f.wp), &bumped)

	res, err = next.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Articles.WPToAPI, 1, "clean posts re-push under a new logic version")

	version, err := f.wp.PostMeta(ctx, postID, wordpress.MetaSyncVersion)
	require.NoError(t, err)
	assert.Equal(t, "3", version)
	assert.Len(t, f.remote.Published, 1)

	// A third run under the same version converges again.
	res, err = next.Run(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Zero(t, res.Articles.Total())
}

func TestRunPushOnlyPushesMappedEdits(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Sync.PullEnabled = false
	})
	ctx := context.Background()
	f.seedDefaultImage(t)

	catID, err := f.wp.CreateCategory(ctx, "News", "news", 0)
	require.NoError(t, err)
	postID, err := f.wp.CreateArticle(ctx, "Original", "Body", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, err)
	require.NoError(t, f.wp.SetArticleCategories(ctx, postID, []int64{catID}))

	res, err := f.syncer.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, f.remote.Articles, 1)

	require.NoError(t, f.wp.UpdateArticle(ctx, postID, "Edited", "New body", time.Now().UTC().Add(time.Minute)))
	require.NoError(t, f.wp.SetPostMeta(ctx, postID, wordpress.MetaNeedsSync, wordpress.NeedsSyncYes))

	res, err = f.syncer.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Articles.WPToAPI, 1, "mapped edits push with pulls off")

	for _, a := range f.remote.Articles {
		assert.Equal(t, "Edited", a.Title)
		assert.Equal(t, "New body", a.Content)
	}
}

func TestRunPushesAllPostsSharingBatchBoundarySecond(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Sync.ArticleBatchSize = 2
	})
	ctx := context.Background()
	f.seedDefaultImage(t)

	catID, err := f.wp.CreateCategory(ctx, "News", "news", 0)
	require.NoError(t, err)
	ts := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		postID, err := f.wp.CreateArticle(ctx, "Burst", "Body", ts)
		require.NoError(t, err)
		require.NoError(t, f.wp.SetArticleCategories(ctx, postID, []int64{catID}))
	}

	res, err := f.syncer.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	assert.Len(t, f.remote.Articles, 3, "same-second posts cross the batch boundary")
}

func TestRunRequiresAuthToken(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Crowdaa.AuthToken = ""
	})
	res, err := f.syncer.Run(context.Background(), TriggerManual)
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
}

func TestRunRequiresDefaultImage(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.syncer.Run(context.Background(), TriggerManual)
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
}

func TestPreviewDoesNotApply(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.wp.CreatePMProLevel(ctx, "Gold")
	require.NoError(t, err)

	res, err := f.syncer.Preview(ctx)
	require.NoError(t, err)
	require.Len(t, res.Badges.OnlyWP, 1)

	assert.Empty(t, f.remote.Badges)
	entries, err := f.maps.List(models.CollectionBadges)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMigrateLegacyMappingsRunsOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	catID, err := f.wp.CreateCategory(ctx, "Legacy", "legacy", 0)
	require.NoError(t, err)
	require.NoError(t, f.wp.SetTermMeta(ctx, catID, wordpress.MetaLegacyAPICategoryID, "cat-legacy"))

	require.NoError(t, f.syncer.MigrateLegacyMappings(ctx))

	entry, err := f.maps.GetByLocal(models.CollectionCategories, catID)
	require.NoError(t, err)
	assert.Equal(t, "cat-legacy", entry.RemoteID)

	// A second invocation is a no-op: removing the mapping and re-running
	// does not import again.
	require.NoError(t, f.maps.Delete(models.CollectionCategories, entry.ID))
	require.NoError(t, f.syncer.MigrateLegacyMappings(ctx))
	_, err = f.maps.GetByLocal(models.CollectionCategories, catID)
	assert.ErrorIs(t, err, mapstore.ErrNotFound)
}

func TestRunPushDisabledSkipsLocalChanges(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Sync.PushEnabled = false
	})
	ctx := context.Background()
	f.seedDefaultImage(t)

	_, err := f.wp.CreatePMProLevel(ctx, "Gold")
	require.NoError(t, err)

	res, err := f.syncer.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	assert.Empty(t, f.remote.Badges)
	assert.True(t, res.Badges.PushDisabled)
	assert.Zero(t, res.Badges.Total())
}
