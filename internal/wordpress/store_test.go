// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package wordpress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/common-repository/crowdaa-sync/internal/testinfra"
)

func NewTestStore(t *testing.T) *Store {
	t.Helper()
	return NewWithDB(testinfra.NewWordPressDB(t))
}

func TestCategoryCRUD(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	parentID, err := s.CreateCategory(ctx, "News", "news", 0)
	require.NoError(t, err)
	childID, err := s.CreateCategory(ctx, "Sports", "sports", parentID)
	require.NoError(t, err)

	terms, err := s.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "News", terms[0].Name)
	assert.Equal(t, parentID, terms[1].Parent)

	require.NoError(t, s.UpdateCategory(ctx, childID, "Sport", "sport", 0))
	got, err := s.Category(ctx, childID)
	require.NoError(t, err)
	assert.Equal(t, "Sport", got.Name)
	assert.Zero(t, got.Parent)

	require.NoError(t, s.DeleteCategory(ctx, childID))
	_, err = s.Category(ctx, childID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTermMeta(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	id, err := s.CreateCategory(ctx, "News", "news", 0)
	require.NoError(t, err)

	val, err := s.TermMeta(ctx, id, MetaLegacyAPICategoryID)
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, s.SetTermMeta(ctx, id, MetaLegacyAPICategoryID, "abc"))
	require.NoError(t, s.SetTermMeta(ctx, id, MetaLegacyAPICategoryID, "def"))

	val, err = s.TermMeta(ctx, id, MetaLegacyAPICategoryID)
	require.NoError(t, err)
	assert.Equal(t, "def", val, "set should overwrite, not duplicate")

	require.NoError(t, s.DeleteTermMeta(ctx, id, MetaLegacyAPICategoryID))
	val, err = s.TermMeta(ctx, id, MetaLegacyAPICategoryID)
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestArticlesModifiedSince(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := s.CreateArticle(ctx, "Post", "body", base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}

	posts, err := s.ArticlesModifiedSince(ctx, base.Add(90*time.Minute), 0, 10)
	require.NoError(t, err)
	require.Len(t, posts, 3, "rows past the cursor second")
	assert.True(t, posts[0].Modified.Before(posts[1].Modified), "oldest first")

	posts, err = s.ArticlesModifiedSince(ctx, base.Add(-time.Hour), 0, 2)
	require.NoError(t, err)
	assert.Len(t, posts, 2, "limit caps the batch")
}

func TestArticlesModifiedSinceSameSecondCursor(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := s.CreateArticle(ctx, "Post", "body", ts)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	first, err := s.ArticlesModifiedSince(ctx, time.Time{}, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	last := first[len(first)-1]
	rest, err := s.ArticlesModifiedSince(ctx, last.Modified, last.ID, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1, "the id tie-break reaches rows sharing the cursor second")
	assert.Equal(t, ids[2], rest[0].ID)
}

func TestArticleCategories(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	catA, err := s.CreateCategory(ctx, "A", "a", 0)
	require.NoError(t, err)
	catB, err := s.CreateCategory(ctx, "B", "b", 0)
	require.NoError(t, err)
	postID, err := s.CreateArticle(ctx, "Post", "body", time.Time{})
	require.NoError(t, err)

	require.NoError(t, s.SetArticleCategories(ctx, postID, []int64{catA, catB}))
	ids, err := s.ArticleCategories(ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, []int64{catA, catB}, ids)

	require.NoError(t, s.SetArticleCategories(ctx, postID, []int64{catB}))
	ids, err = s.ArticleCategories(ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, []int64{catB}, ids, "set replaces prior assignments")
}

func TestPostMetaAndLookup(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	postID, err := s.CreateArticle(ctx, "Post", "body", time.Time{})
	require.NoError(t, err)
	otherID, err := s.CreateArticle(ctx, "Other", "body", time.Time{})
	require.NoError(t, err)

	require.NoError(t, s.SetPostMeta(ctx, postID, MetaAPIPostID, "r-1"))
	require.NoError(t, s.SetPostMeta(ctx, postID, MetaNeedsSync, NeedsSyncYes))

	val, err := s.PostMeta(ctx, postID, MetaAPIPostID)
	require.NoError(t, err)
	assert.Equal(t, "r-1", val)

	ids, err := s.PostsWithMeta(ctx, MetaAPIPostID)
	require.NoError(t, err)
	assert.Equal(t, []int64{postID}, ids)
	assert.NotContains(t, ids, otherID)

	require.NoError(t, s.DeletePostMeta(ctx, postID, MetaNeedsSync))
	val, err = s.PostMeta(ctx, postID, MetaNeedsSync)
	require.NoError(t, err)
	assert.Equal(t, NeedsSyncUnset, val)
}

func TestDeleteArticleCleansUp(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	cat, err := s.CreateCategory(ctx, "A", "a", 0)
	require.NoError(t, err)
	postID, err := s.CreateArticle(ctx, "Post", "body", time.Time{})
	require.NoError(t, err)
	require.NoError(t, s.SetArticleCategories(ctx, postID, []int64{cat}))
	require.NoError(t, s.SetPostMeta(ctx, postID, MetaAPIPostID, "r-1"))

	require.NoError(t, s.DeleteArticle(ctx, postID))

	_, err = s.Article(ctx, postID)
	assert.ErrorIs(t, err, ErrNotFound)
	ids, err := s.ArticleCategories(ctx, postID)
	require.NoError(t, err)
	assert.Empty(t, ids)
	val, err := s.PostMeta(ctx, postID, MetaAPIPostID)
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestAttachments(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	postID, err := s.CreateArticle(ctx, "Post", "body", time.Time{})
	require.NoError(t, err)

	attID, err := s.CreateAttachment(ctx, postID, "https://example.test/pic.jpg", "image/jpeg")
	require.NoError(t, err)

	atts, err := s.Attachments(ctx, postID)
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, attID, atts[0].ID)
	assert.Equal(t, "image/jpeg", atts[0].MimeType)

	posts, err := s.Articles(ctx)
	require.NoError(t, err)
	assert.Len(t, posts, 1, "attachments must not surface as articles")
}

func TestOptions(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	val, err := s.Option(ctx, OptionDefaultImageID)
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, s.SetOption(ctx, OptionDefaultImageID, "77"))
	require.NoError(t, s.SetOption(ctx, OptionDefaultImageID, "78"))

	val, err = s.Option(ctx, OptionDefaultImageID)
	require.NoError(t, err)
	assert.Equal(t, "78", val)
}

func TestMembershipLevels(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	goldID, err := s.CreatePMProLevel(ctx, "Gold")
	require.NoError(t, err)
	_, err = s.CreatePMProLevel(ctx, "Silver")
	require.NoError(t, err)

	levels, err := s.PMProLevels(ctx)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, "Gold", levels[0].Name)

	require.NoError(t, s.SetPMProUserLevels(ctx, 10, []int64{goldID}))
	ids, err := s.PMProUserLevels(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{goldID}, ids)

	require.NoError(t, s.DeletePMProLevel(ctx, goldID))
	ids, err = s.PMProUserLevels(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, ids, "deleting a level drops its assignments")

	swpmID, err := s.CreateSWPMLevel(ctx, "Member")
	require.NoError(t, err)
	require.NoError(t, s.SetSWPMUserLevel(ctx, 5, swpmID))
	got, err := s.SWPMUserLevel(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, swpmID, got)

	got, err = s.SWPMUserLevel(ctx, 999)
	require.NoError(t, err)
	assert.Zero(t, got, "non-member reads as level zero")
}
