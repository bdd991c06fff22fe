package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danribes/mystic-ecom-sub009/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(config.ProviderConfig{
		APIBase:           srv.URL,
		AccountID:         "acct123",
		APIToken:          "tok",
		RequestTimeoutSec: 5,
	}, nil)
	return c, srv
}

func TestIssueUploadTicket(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"result": map[string]string{
				"uploadURL": "https://upload.example.com/tus/xyz",
				"uid":       "xyz",
			},
		})
	})

	expiry := time.Now().Add(30 * time.Minute)
	ticket, err := c.IssueUploadTicket(context.Background(), TicketOptions{
		MaxDurationSeconds: 21600,
		Expiry:             expiry,
		Creator:            "user-1",
		Meta:               map[string]string{"courseId": "go-101"},
	})
	if err != nil {
		t.Fatalf("IssueUploadTicket: %v", err)
	}
	if ticket.URL != "https://upload.example.com/tus/xyz" || ticket.ProviderVideoID != "xyz" {
		t.Fatalf("ticket = %+v", ticket)
	}
	if !ticket.ExpiresAt.Equal(expiry) {
		t.Fatalf("expiresAt = %v, want %v", ticket.ExpiresAt, expiry)
	}
	if gotPath != "/accounts/acct123/stream/direct_upload" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotBody["maxDurationSeconds"].(float64) != 21600 {
		t.Fatalf("body = %v", gotBody)
	}
	if gotBody["creator"] != "user-1" {
		t.Fatalf("creator = %v", gotBody["creator"])
	}
}

func TestIssueUploadTicket_ProviderError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"errors":  []map[string]interface{}{{"code": 10005, "message": "exceeded quota"}},
		})
	})
	if _, err := c.IssueUploadTicket(context.Background(), TicketOptions{Expiry: time.Now()}); err == nil {
		t.Fatal("expected error from unsuccessful envelope")
	}
}

func TestGetAsset(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/acct123/stream/xyz" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"result": map[string]interface{}{
				"uid": "xyz",
				"status": map[string]string{
					"state":       "inprogress",
					"pctComplete": "73",
				},
				"duration":  120.5,
				"thumbnail": "https://cdn.example.com/t.jpg",
				"playback":  map[string]string{"hls": "https://cdn.example.com/m.m3u8"},
			},
		})
	})

	a, err := c.GetAsset(context.Background(), "xyz")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if a.State != "inprogress" || a.PctComplete != 73 || a.Duration != 120.5 {
		t.Fatalf("asset = %+v", a)
	}
	if a.PlaybackHLS != "https://cdn.example.com/m.m3u8" {
		t.Fatalf("hls = %q", a.PlaybackHLS)
	}
}

func TestGetAsset_NotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	if _, err := c.GetAsset(context.Background(), "missing"); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("err = %v, want ErrAssetNotFound", err)
	}
}

func TestDeleteAsset_NotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	if err := c.DeleteAsset(context.Background(), "missing"); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("err = %v, want ErrAssetNotFound", err)
	}
}

func TestCreateDownload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/acct123/stream/xyz/downloads" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"result": map[string]interface{}{
				"default": map[string]string{"url": "https://dl.example.com/xyz.mp4"},
			},
		})
	})
	url, err := c.CreateDownload(context.Background(), "xyz")
	if err != nil {
		t.Fatalf("CreateDownload: %v", err)
	}
	if url != "https://dl.example.com/xyz.mp4" {
		t.Fatalf("url = %q", url)
	}
}
