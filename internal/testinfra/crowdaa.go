// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package testinfra

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/common-repository/crowdaa-sync/internal/crowdaa"
)

// CrowdaaServer is a fake Crowdaa API backed by in-memory maps. It
// implements the endpoints the sync engine calls and records nothing
// else. All access is safe for concurrent use.
type CrowdaaServer struct {
	mu         sync.Mutex
	nextID     int
	Categories map[string]*crowdaa.Category
	Badges     map[string]*crowdaa.Badge
	Articles   map[string]*crowdaa.Article
	Published  map[string]string // article id -> last published draft id
	Files      map[string][]byte

	srv *httptest.Server
}

// NewCrowdaaServer starts the fake API and registers its shutdown on t.
func NewCrowdaaServer(t testing.TB) *CrowdaaServer {
	t.Helper()
	s := &CrowdaaServer{
		Categories: make(map[string]*crowdaa.Category),
		Badges:     make(map[string]*crowdaa.Badge),
		Articles:   make(map[string]*crowdaa.Article),
		Published:  make(map[string]string),
		Files:      make(map[string][]byte),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/press/categories/", s.handleCategories)
	mux.HandleFunc("/userBadges", s.handleBadges)
	mux.HandleFunc("/userBadges/", s.handleBadges)
	mux.HandleFunc("/admin/press/articlesFrom", s.handleArticlesFrom)
	mux.HandleFunc("/admin/press/articles/", s.handleArticles)
	mux.HandleFunc("/press/articles/", s.handlePressArticles)
	mux.HandleFunc("/files", s.handleFiles)
	mux.HandleFunc("/storage/", s.handleStorage)
	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the fake API base URL.
func (s *CrowdaaServer) URL() string {
	return s.srv.URL
}

// BadgeCount returns the number of stored badges. Safe to call while
// the server handles requests.
func (s *CrowdaaServer) BadgeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Badges)
}

func (s *CrowdaaServer) newID(kind string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", kind, s.nextID)
}

// AddCategory seeds a category and returns its id.
func (s *CrowdaaServer) AddCategory(c crowdaa.Category) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = s.newID("cat")
	}
	s.Categories[c.ID] = &c
	return c.ID
}

// AddBadge seeds a badge and returns its id.
func (s *CrowdaaServer) AddBadge(b crowdaa.Badge) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = s.newID("badge")
	}
	s.Badges[b.ID] = &b
	return b.ID
}

// AddArticle seeds an article and returns its id.
func (s *CrowdaaServer) AddArticle(a crowdaa.Article) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = s.newID("art")
	}
	s.Articles[a.ID] = &a
	return a.ID
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeNotFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
	writeJSON(w, map[string]string{"message": "not found"})
}

func (s *CrowdaaServer) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimPrefix(r.URL.Path, "/admin/press/categories/")
	switch {
	case r.Method == http.MethodGet && id == "":
		cats := make([]*crowdaa.Category, 0, len(s.Categories))
		for _, c := range s.Categories {
			cats = append(cats, c)
		}
		sort.Slice(cats, func(i, j int) bool { return cats[i].ID < cats[j].ID })
		writeJSON(w, cats)
	case r.Method == http.MethodPost && id == "":
		var c crowdaa.Category
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.ID = s.newID("cat")
		s.Categories[c.ID] = &c
		writeJSON(w, &c)
	case r.Method == http.MethodPut:
		if _, ok := s.Categories[id]; !ok {
			writeNotFound(w)
			return
		}
		var c crowdaa.Category
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.ID = id
		s.Categories[id] = &c
		writeJSON(w, &c)
	case r.Method == http.MethodDelete:
		if _, ok := s.Categories[id]; !ok {
			writeNotFound(w)
			return
		}
		delete(s.Categories, id)
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *CrowdaaServer) handleBadges(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/userBadges"), "/")
	switch {
	case r.Method == http.MethodGet && id == "":
		badges := make([]*crowdaa.Badge, 0, len(s.Badges))
		for _, b := range s.Badges {
			badges = append(badges, b)
		}
		sort.Slice(badges, func(i, j int) bool { return badges[i].ID < badges[j].ID })
		writeJSON(w, badges)
	case r.Method == http.MethodPost && id == "":
		var b crowdaa.Badge
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.ID = s.newID("badge")
		s.Badges[b.ID] = &b
		writeJSON(w, &b)
	case r.Method == http.MethodPut:
		if _, ok := s.Badges[id]; !ok {
			writeNotFound(w)
			return
		}
		var b crowdaa.Badge
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.ID = id
		s.Badges[id] = &b
		writeJSON(w, &b)
	case r.Method == http.MethodDelete:
		if _, ok := s.Badges[id]; !ok {
			writeNotFound(w)
			return
		}
		delete(s.Badges, id)
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *CrowdaaServer) handleArticlesFrom(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, _ := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	start, _ := strconv.Atoi(r.URL.Query().Get("start"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}

	var matched []*crowdaa.Article
	for _, a := range s.Articles {
		if a.UpdatedAt.After(from) {
			matched = append(matched, a)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.Before(matched[j].UpdatedAt)
	})
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	writeJSON(w, matched[start:end])
}

func (s *CrowdaaServer) handleArticles(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimPrefix(r.URL.Path, "/admin/press/articles/")
	switch {
	case r.Method == http.MethodPost && id == "":
		var a crowdaa.Article
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		a.ID = s.newID("art")
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = time.Now().UTC()
		}
		s.Articles[a.ID] = &a
		writeJSON(w, &a)
	case r.Method == http.MethodPut:
		if _, ok := s.Articles[id]; !ok {
			writeNotFound(w)
			return
		}
		var a crowdaa.Article
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		a.ID = id
		a.UpdatedAt = time.Now().UTC()
		s.Articles[id] = &a
		writeJSON(w, crowdaa.ArticleDraft{DraftID: s.newID("draft")})
	case r.Method == http.MethodDelete:
		if _, ok := s.Articles[id]; !ok {
			writeNotFound(w)
			return
		}
		delete(s.Articles, id)
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *CrowdaaServer) handlePressArticles(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rest := strings.TrimPrefix(r.URL.Path, "/press/articles/")
	if id, ok := strings.CutSuffix(rest, "/publish"); ok && r.Method == http.MethodPost {
		if _, exists := s.Articles[id]; !exists {
			writeNotFound(w)
			return
		}
		var body struct {
			DraftID string `json:"draftId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.Published[id] = body.DraftID
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method == http.MethodGet {
		a, ok := s.Articles[rest]
		if !ok {
			writeNotFound(w)
			return
		}
		writeJSON(w, a)
		return
	}
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func (s *CrowdaaServer) handleFiles(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := s.newID("file")
	writeJSON(w, crowdaa.FileTicket{
		FileID:    id,
		UploadURL: s.srv.URL + "/storage/" + id,
	})
}

func (s *CrowdaaServer) handleStorage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/storage/")
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.Files[id] = data
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}
