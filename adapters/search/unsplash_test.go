package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/papantulis/server/domain"
)

func newTestSearch(t *testing.T, handler http.HandlerFunc) (*UnsplashSearch, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	s, err := NewUnsplashSearch(UnsplashConfig{AccessKey: "test-key", APIBaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create search: %v", err)
	}
	return s, server
}

func TestUnsplashSearch_FirstResult(t *testing.T) {
	var calls int32
	s, _ := newTestSearch(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "Client-ID test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("query") != "water cycle" || r.URL.Query().Get("per_page") != "1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"results":[{"width":800,"height":400,"urls":{"regular":"https://img/1.jpg"}}]}`))
	})

	result, err := s.Search(context.Background(), "water cycle")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.ImageURL != "https://img/1.jpg" || result.Width != 800 || result.Height != 400 {
		t.Errorf("Expected first result, got %+v", result)
	}

	if _, err := s.Search(context.Background(), "Water Cycle"); err != nil {
		t.Fatalf("Unexpected error on cached search: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 upstream call, got %d", got)
	}
}

func TestUnsplashSearch_NoResults(t *testing.T) {
	s, _ := newTestSearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	})

	_, err := s.Search(context.Background(), "nothing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUnsplashSearch_UpstreamStatus(t *testing.T) {
	s, _ := newTestSearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"errors":["Rate Limit Exceeded"]}`))
	})

	_, err := s.Search(context.Background(), "atoms")
	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected NetworkError, got %v", err)
	}
	if netErr.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", netErr.StatusCode)
	}
}

func TestUnsplashSearch_NotConfigured(t *testing.T) {
	s, err := NewUnsplashSearch(UnsplashConfig{}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create search: %v", err)
	}

	if _, err := s.Search(context.Background(), "cells"); !errors.Is(err, domain.ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestUnsplashSearch_EmptyQuery(t *testing.T) {
	s, _ := newTestSearch(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("Expected no upstream call for empty query")
	})

	if _, err := s.Search(context.Background(), "   "); err == nil {
		t.Error("Expected error for empty query")
	}
}
