package infra

import (
	"image/color"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
)

func TestIconDownloader_DownloadIcon(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/sol.png" {
			http.NotFound(w, r)
			return
		}
		img := imaging.New(128, 128, color.NRGBA{R: 153, G: 69, B: 255, A: 255})
		imaging.Encode(w, img, imaging.PNG)
	}))
	defer srv.Close()

	d, err := NewIconDownloader(t.TempDir())
	if err != nil {
		t.Fatalf("NewIconDownloader failed: %v", err)
	}

	path, err := d.DownloadIcon("SOL", srv.URL+"/sol.png")
	if err != nil {
		t.Fatalf("DownloadIcon failed: %v", err)
	}
	if path != d.GetIconPath("SOL") {
		t.Errorf("path = %s, want %s", path, d.GetIconPath("SOL"))
	}

	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("stored icon unreadable: %v", err)
	}
	if b := img.Bounds(); b.Dx() != IconSize || b.Dy() != IconSize {
		t.Errorf("icon size = %dx%d, want %dx%d", b.Dx(), b.Dy(), IconSize, IconSize)
	}

	// Cache hit
	if _, err := d.DownloadIcon("SOL", srv.URL+"/sol.png"); err != nil {
		t.Fatalf("cached DownloadIcon failed: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 download, got %d", hits.Load())
	}
}

func TestIconDownloader_Errors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d, err := NewIconDownloader(t.TempDir())
	if err != nil {
		t.Fatalf("NewIconDownloader failed: %v", err)
	}

	tests := []struct {
		name    string
		symbol  string
		logoURI string
	}{
		{"path traversal symbol", "../..", srv.URL + "/x.png"},
		{"missing logo", "USDC", ""},
		{"bad status", "USDC", srv.URL + "/usdc.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.DownloadIcon(tt.symbol, tt.logoURI); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSanitizeSymbol(t *testing.T) {
	if got := sanitizeSymbol("mSOL/../x"); got != "mSOLx" {
		t.Errorf("sanitizeSymbol = %q", got)
	}
}
