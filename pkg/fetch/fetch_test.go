package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// lateTitlePage is UTF-8 without any charset declaration, with the title
// beyond the sniffed prefix.
var lateTitlePage = "<script>" + strings.Repeat("a", 1100) + "</script><title>Café</title>"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<title>Ok</title>"))
	})
	mux.HandleFunc("/ua", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("User-Agent")))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "<title>Not Found</title>", http.StatusNotFound)
	})
	mux.HandleFunc("/image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte("<title>Caf\xe9</title>"))
	})
	mux.HandleFunc("/meta-charset", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<meta charset=\"windows-1252\"><title>na\xefve</title>"))
	})
	mux.HandleFunc("/late-title", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(lateTitlePage))
	})
	mux.HandleFunc("/undeclared-latin1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<title>Caf\xe9</title>"))
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strings.Repeat("a", 4096)))
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestGetSuccess(t *testing.T) {
	ts := newTestServer(t)
	body, err := New(Options{}).Get(context.Background(), ts.URL+"/ok")
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if body != "<title>Ok</title>" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestGetSendsUserAgent(t *testing.T) {
	ts := newTestServer(t)
	body, err := New(Options{UserAgent: "sift-test/1"}).Get(context.Background(), ts.URL+"/ua")
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if body != "sift-test/1" {
		t.Errorf("expected user agent to be sent, got %q", body)
	}
}

func TestGetErrors(t *testing.T) {
	ts := newTestServer(t)
	client := New(Options{MaxRedirects: 3})

	tests := []struct {
		path string
		want error
	}{
		{"/missing", ErrStatus},
		{"/image", ErrNotText},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := client.Get(context.Background(), ts.URL+tt.path)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := client.Get(context.Background(), ts.URL+"/loop"); err == nil {
		t.Error("expected redirect loop to fail")
	}
	if _, err := client.Get(context.Background(), "http://127.0.0.1:1/unreachable"); err == nil {
		t.Error("expected connection error")
	}
	if _, err := client.Get(context.Background(), "::not a url"); err == nil {
		t.Error("expected invalid url error")
	}
}

func TestGetDecodesCharset(t *testing.T) {
	ts := newTestServer(t)
	client := New(Options{})

	tests := map[string]string{
		"/latin1":            "<title>Café</title>",
		"/meta-charset":      `<meta charset="windows-1252"><title>naïve</title>`,
		"/late-title":        lateTitlePage,
		"/undeclared-latin1": "<title>Café</title>",
	}
	for path, want := range tests {
		body, err := client.Get(context.Background(), ts.URL+path)
		if err != nil {
			t.Fatalf("Failed to fetch %s: %v", path, err)
		}
		if body != want {
			t.Errorf("%s: expected %q, got %q", path, want, body)
		}
	}
}

func TestGetLimitsBody(t *testing.T) {
	ts := newTestServer(t)
	body, err := New(Options{MaxBodyBytes: 100}).Get(context.Background(), ts.URL+"/big")
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if len(body) != 100 {
		t.Errorf("expected body truncated to 100 bytes, got %d", len(body))
	}
}

func TestGetHonoursContextDeadline(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := New(Options{}).Get(ctx, ts.URL+"/slow"); err == nil {
		t.Fatal("expected deadline error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("fetch did not stop at the deadline, took %s", elapsed)
	}
}

func TestGetRateLimited(t *testing.T) {
	ts := newTestServer(t)
	client := New(Options{RequestsPerSecond: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if _, err := client.Get(ctx, ts.URL+"/ok"); err != nil {
		t.Fatalf("first request should pass the limiter: %v", err)
	}
	if _, err := client.Get(ctx, ts.URL+"/ok"); err == nil {
		t.Fatal("expected second request to exceed the deadline waiting for the limiter")
	}
}

func TestIsText(t *testing.T) {
	tests := map[string]bool{
		"":                          true,
		"text/html":                 true,
		"text/plain; charset=utf-8": true,
		"application/xhtml+xml":     true,
		"application/xml":           true,
		"application/json":          false,
		"image/x-icon":              false,
		"bogus;;;":                  false,
	}
	for contentType, want := range tests {
		if got := isText(contentType); got != want {
			t.Errorf("isText(%q) = %v, want %v", contentType, got, want)
		}
	}
}

func TestDecodeHonoursMetaDeclaration(t *testing.T) {
	raw := []byte(`<meta http-equiv="Content-Type" content="text/html; charset=windows-1252"><title>Café</title>`)
	body, err := decode(raw, "text/html")
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if !strings.Contains(body, "<title>CafÃ©</title>") {
		t.Errorf("expected declared windows-1252 to win, got %q", body)
	}

	body, err = decode([]byte("<title>plain</title>"), "")
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if body != "<title>plain</title>" {
		t.Errorf("unexpected body %q", body)
	}
}
