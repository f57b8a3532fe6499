// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package crowdaa

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ListCategories returns every press category.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var cats []Category
	if err := c.do(ctx, http.MethodGet, "/admin/press/categories/", nil, nil, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// CreateCategory creates a press category and returns it with its id.
func (c *Client) CreateCategory(ctx context.Context, cat *Category) (*Category, error) {
	var created Category
	if err := c.do(ctx, http.MethodPost, "/admin/press/categories/", nil, cat, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateCategory rewrites a press category.
func (c *Client) UpdateCategory(ctx context.Context, id string, cat *Category) error {
	return c.do(ctx, http.MethodPut, "/admin/press/categories/"+url.PathEscape(id), nil, cat, nil)
}

// DeleteCategory removes a press category.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/admin/press/categories/"+url.PathEscape(id), nil, nil, nil)
}

// ListBadges returns every user badge.
func (c *Client) ListBadges(ctx context.Context) ([]Badge, error) {
	var badges []Badge
	if err := c.do(ctx, http.MethodGet, "/userBadges", nil, nil, &badges); err != nil {
		return nil, err
	}
	return badges, nil
}

// CreateBadge creates a user badge and returns it with its id.
func (c *Client) CreateBadge(ctx context.Context, b *Badge) (*Badge, error) {
	var created Badge
	if err := c.do(ctx, http.MethodPost, "/userBadges", nil, b, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateBadge rewrites a user badge.
func (c *Client) UpdateBadge(ctx context.Context, id string, b *Badge) error {
	return c.do(ctx, http.MethodPut, "/userBadges/"+url.PathEscape(id), nil, b, nil)
}

// DeleteBadge removes a user badge.
func (c *Client) DeleteBadge(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/userBadges/"+url.PathEscape(id), nil, nil, nil)
}

// ListArticlesFrom returns articles modified strictly after from,
// paginated by start and limit, oldest first.
func (c *Client) ListArticlesFrom(ctx context.Context, from time.Time, start, limit int) ([]Article, error) {
	query := url.Values{}
	query.Set("from", from.UTC().Format(time.RFC3339))
	query.Set("start", strconv.Itoa(start))
	query.Set("limit", strconv.Itoa(limit))

	var articles []Article
	if err := c.do(ctx, http.MethodGet, "/admin/press/articlesFrom", query, nil, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// GetArticle returns one article with its full content and media.
func (c *Client) GetArticle(ctx context.Context, id string) (*Article, error) {
	var article Article
	if err := c.do(ctx, http.MethodGet, "/press/articles/"+url.PathEscape(id), nil, nil, &article); err != nil {
		return nil, err
	}
	return &article, nil
}

// CreateArticle creates an article and returns it with its id.
func (c *Client) CreateArticle(ctx context.Context, a *Article) (*Article, error) {
	var created Article
	if err := c.do(ctx, http.MethodPost, "/admin/press/articles/", nil, a, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateArticleDraft stages an article update as a draft. The change
// only becomes visible once PublishArticle is called with the draft id.
func (c *Client) UpdateArticleDraft(ctx context.Context, id string, a *Article) (*ArticleDraft, error) {
	var draft ArticleDraft
	if err := c.do(ctx, http.MethodPut, "/admin/press/articles/"+url.PathEscape(id), nil, a, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// PublishArticle publishes a staged draft. notify sends a push
// notification to subscribers; callers must make sure it fires at most
// once per article.
func (c *Client) PublishArticle(ctx context.Context, id, draftID string, notify bool) error {
	body := map[string]any{"draftId": draftID, "notify": notify}
	return c.do(ctx, http.MethodPost, "/press/articles/"+url.PathEscape(id)+"/publish", nil, body, nil)
}

// DeleteArticle removes an article.
func (c *Client) DeleteArticle(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/admin/press/articles/"+url.PathEscape(id), nil, nil, nil)
}

// UploadFile creates a file asset and uploads its payload to the
// returned presigned URL. Returns the remote file id.
func (c *Client) UploadFile(ctx context.Context, name, mimeType string, payload []byte) (string, error) {
	var ticket FileTicket
	body := map[string]string{"name": name, "type": mimeType}
	if err := c.do(ctx, http.MethodPost, "/files", nil, body, &ticket); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, ticket.UploadURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", fmt.Errorf("upload file: %w", newAPIError(resp.StatusCode, data))
	}
	return ticket.FileID, nil
}
