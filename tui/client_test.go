package tui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"

	"github.com/kaitranntt/jobhunt-sub002/domain"
)

func TestFetchApplicationsFollowsPagination(t *testing.T) {
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/applications" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization header = %q", got)
		}
		token := r.URL.Query().Get("pageToken")
		tokens = append(tokens, token)
		var page applicationsPage
		if token == "" {
			page = applicationsPage{
				Applications:  []domain.Application{{ID: "a1", Status: domain.StatusWishlist}},
				NextPageToken: "page-2",
			}
		} else {
			page = applicationsPage{
				Applications: []domain.Application{{ID: "a2", Status: domain.StatusApplied}},
			}
		}
		body, _ := sonic.Marshal(page)
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	apps, err := client.FetchApplications(context.Background())
	if err != nil {
		t.Fatalf("FetchApplications: %v", err)
	}
	if len(apps) != 2 || apps[0].ID != "a1" || apps[1].ID != "a2" {
		t.Fatalf("unexpected applications: %+v", apps)
	}
	if len(tokens) != 2 || tokens[0] != "" || tokens[1] != "page-2" {
		t.Fatalf("unexpected page tokens: %v", tokens)
	}
}

func TestFetchApplicationsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	if _, err := client.FetchApplications(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	} else if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("error should carry the response body, got %v", err)
	}
}

func TestUpdateStatusPostsMove(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "tok")
	if err := client.UpdateStatus(context.Background(), "app-1", domain.StatusApplied); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if gotPath != "/api/applications/app-1/move" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody != `{"target":"applied"}` {
		t.Fatalf("unexpected body %q", gotBody)
	}
}

func TestUpdateStatusRejectedMove(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unresolvable drop target", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	if err := client.UpdateStatus(context.Background(), "app-1", domain.StatusApplied); err == nil {
		t.Fatal("expected error for 422 response")
	}
}
