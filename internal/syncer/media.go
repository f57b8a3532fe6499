// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package syncer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/common-repository/crowdaa-sync/internal/models"
	"github.com/common-repository/crowdaa-sync/internal/wordpress"
)

// mediaMap reads the typed remote-to-attachment media map stored on a
// post. An absent or empty meta value yields an empty map.
func (s *Syncer) mediaMap(ctx context.Context, postID int64) ([]models.MediaMapEntry, error) {
	raw, err := s.wp.PostMeta(ctx, postID, wordpress.MetaMediaMap)
	if err != nil {
		return nil, fatalErr("read media map: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var entries []models.MediaMapEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, entityErr("decode media map for %d: %w", postID, err)
	}
	return entries, nil
}

func (s *Syncer) writeMediaMap(ctx context.Context, postID int64, entries []models.MediaMapEntry) error {
	if len(entries) == 0 {
		if err := s.wp.DeletePostMeta(ctx, postID, wordpress.MetaMediaMap); err != nil {
			return entityErr("clear media map: %w", err)
		}
		return nil
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return entityErr("encode media map: %w", err)
	}
	if err := s.wp.SetPostMeta(ctx, postID, wordpress.MetaMediaMap, string(raw)); err != nil {
		return entityErr("write media map: %w", err)
	}
	return nil
}

// pushArticleMedia uploads the post's attachments that are not yet on
// the remote side and returns the full media map plus the remote ids in
// attachment order. Already uploaded attachments are reused.
func (s *Syncer) pushArticleMedia(ctx context.Context, postID int64) ([]models.MediaMapEntry, []string, error) {
	attachments, err := s.wp.Attachments(ctx, postID)
	if err != nil {
		return nil, nil, fatalErr("list attachments: %w", err)
	}
	existing, err := s.mediaMap(ctx, postID)
	if err != nil {
		return nil, nil, err
	}
	byAttachment := make(map[int64]models.MediaMapEntry, len(existing))
	for _, e := range existing {
		byAttachment[e.AttachmentID] = e
	}

	var entries []models.MediaMapEntry
	var remoteIDs []string
	for _, att := range attachments {
		if e, ok := byAttachment[att.ID]; ok {
			entries = append(entries, e)
			remoteIDs = append(remoteIDs, e.RemoteID)
			continue
		}
		payload, err := s.fetchMedia(ctx, att.URL)
		if err != nil {
			return nil, nil, entityErr("fetch media %d: %w", att.ID, err)
		}
		fileID, err := s.api.UploadFile(ctx, path.Base(att.URL), att.MimeType, payload)
		if err != nil {
			return nil, nil, entityErr("upload media %d: %w", att.ID, err)
		}
		e := models.MediaMapEntry{
			RemoteID:     fileID,
			AttachmentID: att.ID,
			Kind:         mediaKind(att.MimeType),
		}
		entries = append(entries, e)
		remoteIDs = append(remoteIDs, fileID)
	}
	return entries, remoteIDs, nil
}

// pullArticleMedia mirrors remote media into the local library, reusing
// attachments recorded in the media map, and returns the updated map.
func (s *Syncer) pullArticleMedia(ctx context.Context, postID int64, media []models.MediaRef) ([]models.MediaMapEntry, error) {
	existing, err := s.mediaMap(ctx, postID)
	if err != nil {
		return nil, err
	}
	byRemote := make(map[string]models.MediaMapEntry, len(existing))
	for _, e := range existing {
		byRemote[e.RemoteID] = e
	}

	var entries []models.MediaMapEntry
	for _, m := range media {
		if e, ok := byRemote[m.RemoteID]; ok {
			entries = append(entries, e)
			continue
		}
		mime := "image/jpeg"
		if m.Kind == models.MediaVideo {
			mime = "video/mp4"
		}
		attID, err := s.wp.CreateAttachment(ctx, postID, m.URL, mime)
		if err != nil {
			return nil, entityErr("create attachment: %w", err)
		}
		entries = append(entries, models.MediaMapEntry{
			RemoteID:     m.RemoteID,
			AttachmentID: attID,
			Kind:         m.Kind,
		})
	}
	return entries, nil
}

// fetchMedia loads a media payload, from HTTP for remote URLs or from
// the media directory for local paths.
func (s *Syncer) fetchMedia(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create media request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch media: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch media: status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(filepath.Join(s.mediaDir, filepath.FromSlash(ref)))
}

func mediaKind(mimeType string) models.MediaKind {
	if strings.HasPrefix(mimeType, "video/") {
		return models.MediaVideo
	}
	return models.MediaImage
}
