package confluence

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spacedown/spacedown/internal/model"
)

// TestNewClient tests client construction and validation.
func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("valid inputs", func(t *testing.T) {
		t.Parallel()

		c, err := NewClient("https://example.atlassian.net/wiki", "user@example.com", "token", 30*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.BaseURL() != "https://example.atlassian.net/wiki" {
			t.Errorf("unexpected base URL %q", c.BaseURL())
		}
	})

	t.Run("trailing slash is trimmed", func(t *testing.T) {
		t.Parallel()

		c, err := NewClient("https://example.atlassian.net/wiki/", "user@example.com", "token", 30*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.BaseURL() != "https://example.atlassian.net/wiki" {
			t.Errorf("expected trailing slash trimmed, got %q", c.BaseURL())
		}
	})

	t.Run("relative URL returns ErrInvalidSiteURL", func(t *testing.T) {
		t.Parallel()

		_, err := NewClient("example.atlassian.net", "user@example.com", "token", 30*time.Second)
		if !errors.Is(err, ErrInvalidSiteURL) {
			t.Errorf("expected ErrInvalidSiteURL, got %v", err)
		}
	})

	t.Run("missing username returns ErrNoCredentials", func(t *testing.T) {
		t.Parallel()

		_, err := NewClient("https://example.atlassian.net/wiki", "", "token", 30*time.Second)
		if !errors.Is(err, ErrNoCredentials) {
			t.Errorf("expected ErrNoCredentials, got %v", err)
		}
	})

	t.Run("missing token returns ErrNoCredentials", func(t *testing.T) {
		t.Parallel()

		_, err := NewClient("https://example.atlassian.net/wiki", "user@example.com", "", 30*time.Second)
		if !errors.Is(err, ErrNoCredentials) {
			t.Errorf("expected ErrNoCredentials, got %v", err)
		}
	})
}

// TestClientBasicAuth tests that every request carries the basic auth pair.
func TestClientBasicAuth(t *testing.T) {
	t.Parallel()

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("user@example.com:secret"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != wantAuth {
			t.Errorf("got Authorization %q, expected %q", got, wantAuth)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected User-Agent to be set")
		}
		_, _ = w.Write([]byte(`{"key":"DOCS","name":"Documentation"}`)) //nolint:errcheck
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "user@example.com", "secret", 5*time.Second)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, err := client.CheckSpace(context.Background(), "DOCS"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestCheckSpace tests space existence checking.
func TestCheckSpace(t *testing.T) {
	t.Parallel()

	t.Run("existing space", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/rest/api/space/DOCS" {
				t.Errorf("unexpected path %q", r.URL.Path)
			}
			_, _ = w.Write([]byte(`{"key":"DOCS","name":"Documentation"}`)) //nolint:errcheck
		}))
		defer server.Close()

		client, err := NewClient(server.URL, "user@example.com", "token", 5*time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		info, err := client.CheckSpace(context.Background(), "DOCS")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.Key != "DOCS" || info.Name != "Documentation" {
			t.Errorf("unexpected space info: %+v", info)
		}
	})

	t.Run("missing space returns ErrSpaceNotFound", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client, err := NewClient(server.URL, "user@example.com", "token", 5*time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		_, err = client.CheckSpace(context.Background(), "NOPE")
		if !errors.Is(err, ErrSpaceNotFound) {
			t.Errorf("expected ErrSpaceNotFound, got %v", err)
		}
	})
}

// TestFetchPages tests the paginated content listing.
func TestFetchPages(t *testing.T) {
	t.Parallel()

	t.Run("follows pagination and maps records", func(t *testing.T) {
		t.Parallel()

		firstBatch := `{
			"results": [
				{
					"id": "100",
					"title": "Home",
					"body": {"storage": {"value": "<p>welcome</p>"}},
					"ancestors": [],
					"metadata": {"labels": {"results": [{"name": "docs"}, {"name": "docs"}, {"name": "home"}]}},
					"version": {"when": "2024-06-01T10:00:00.000Z"}
				},
				{
					"id": "101",
					"title": "Guide",
					"body": {"storage": {"value": "<p>guide</p>"}},
					"ancestors": [{"id": "100"}],
					"metadata": {"labels": {"results": []}},
					"version": {"when": "2024-07-15T08:30:00.000Z"}
				}
			],
			"size": 2
		}`
		secondBatch := `{
			"results": [
				{
					"id": "102",
					"title": "Deep Dive",
					"body": {"storage": {"value": "<p>deep</p>"}},
					"ancestors": [{"id": "100"}, {"id": "101"}],
					"metadata": {"labels": {"results": []}},
					"version": {"when": "not-a-timestamp"}
				}
			],
			"size": 1
		}`

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/rest/api/content" {
				t.Errorf("unexpected path %q", r.URL.Path)
			}
			if got := r.URL.Query().Get("spaceKey"); got != "DOCS" {
				t.Errorf("got spaceKey %q, expected DOCS", got)
			}
			if got := r.URL.Query().Get("expand"); got != contentExpand {
				t.Errorf("got expand %q, expected %q", got, contentExpand)
			}

			switch r.URL.Query().Get("start") {
			case "0":
				_, _ = w.Write([]byte(firstBatch)) //nolint:errcheck
			case "2":
				_, _ = w.Write([]byte(secondBatch)) //nolint:errcheck
			default:
				t.Errorf("unexpected start %q", r.URL.Query().Get("start"))
			}
		}))
		defer server.Close()

		client, err := NewClient(server.URL, "user@example.com", "token", 5*time.Second, WithPageLimit(2))
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		records, err := client.FetchPages(context.Background(), "DOCS")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(records) != 3 {
			t.Fatalf("expected 3 records, got %d", len(records))
		}

		home := records[0]
		if home.ParentID != "" {
			t.Errorf("expected Home to have no parent, got %q", home.ParentID)
		}
		if len(home.Labels) != 2 || home.Labels[0] != "docs" || home.Labels[1] != "home" {
			t.Errorf("expected deduplicated labels [docs home], got %v", home.Labels)
		}
		if home.LastModified.IsZero() {
			t.Error("expected Home to have a parsed timestamp")
		}

		deep := records[2]
		if deep.ParentID != "101" {
			t.Errorf("expected immediate parent 101, got %q", deep.ParentID)
		}
		if !deep.LastModified.IsZero() {
			t.Errorf("expected unparsable timestamp to stay zero, got %v", deep.LastModified)
		}
	})

	t.Run("auth failure is not retried", func(t *testing.T) {
		t.Parallel()

		var requests atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client, err := NewClient(server.URL, "user@example.com", "bad-token", 5*time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		_, err = client.FetchPages(context.Background(), "DOCS")
		if !errors.Is(err, ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", err)
		}
		if got := requests.Load(); got != 1 {
			t.Errorf("expected exactly 1 request, got %d", got)
		}
	})

	t.Run("transient status is retried", func(t *testing.T) {
		t.Parallel()

		var requests atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if requests.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(`{"results": [], "size": 0}`)) //nolint:errcheck
		}))
		defer server.Close()

		client, err := NewClient(server.URL, "user@example.com", "token", 5*time.Second, WithRetryAttempts(3))
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		records, err := client.FetchPages(context.Background(), "DOCS")
		if err != nil {
			t.Fatalf("unexpected error after retry: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("expected empty listing, got %d records", len(records))
		}
		if got := requests.Load(); got != 2 {
			t.Errorf("expected 2 requests (429 then 200), got %d", got)
		}
	})
}

// TestFetchAttachments tests the attachment metadata listing.
func TestFetchAttachments(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/content/100/child/attachment" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"results": [
				{"title": "diagram.drawio", "metadata": {"mediaType": "application/octet-stream"}, "_links": {"download": "/download/attachments/100/diagram.drawio?version=1"}},
				{"title": "broken.png", "metadata": {}, "_links": {}},
				{"title": "photo.png", "metadata": {"mediaType": "image/png"}, "_links": {"download": "/download/attachments/100/photo.png"}}
			]
		}`)) //nolint:errcheck
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "user@example.com", "token", 5*time.Second)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	refs, err := client.FetchAttachments(context.Background(), "100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// broken.png has no download link and is skipped
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[0].Filename != "diagram.drawio" {
		t.Errorf("unexpected first filename %q", refs[0].Filename)
	}
	if refs[1].MediaType != "image/png" {
		t.Errorf("unexpected media type %q", refs[1].MediaType)
	}
}

// TestDownload tests attachment binary download.
func TestDownload(t *testing.T) {
	t.Parallel()

	t.Run("resolves relative link and streams bytes", func(t *testing.T) {
		t.Parallel()

		content := []byte("PNG bytes here")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/download/attachments/100/photo.png" {
				t.Errorf("unexpected path %q", r.URL.Path)
			}
			_, _ = w.Write(content) //nolint:errcheck
		}))
		defer server.Close()

		client, err := NewClient(server.URL, "user@example.com", "token", 5*time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		var buf bytes.Buffer
		ref := model.AttachmentRef{Filename: "photo.png", DownloadURL: "/download/attachments/100/photo.png?version=1"}
		if err := client.Download(context.Background(), ref, &buf); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(buf.Bytes(), content) {
			t.Errorf("got %q, expected %q", buf.String(), content)
		}
	})

	t.Run("missing attachment returns ErrNotFound", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client, err := NewClient(server.URL, "user@example.com", "token", 5*time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		var buf bytes.Buffer
		ref := model.AttachmentRef{Filename: "gone.png", DownloadURL: "/download/attachments/100/gone.png"}
		err = client.Download(context.Background(), ref, &buf)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("redirect loop names its cause and is not retried", func(t *testing.T) {
		t.Parallel()

		var requests atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			http.Redirect(w, r, "/loop", http.StatusMovedPermanently)
		}))
		defer server.Close()

		client, err := NewClient(server.URL, "user@example.com", "token", 5*time.Second, WithRetryAttempts(3))
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		var buf bytes.Buffer
		ref := model.AttachmentRef{Filename: "loop.bin", DownloadURL: "/loop"}
		err = client.Download(context.Background(), ref, &buf)
		if !errors.Is(err, errTooManyRedirects) {
			t.Fatalf("expected redirect loop error, got %v", err)
		}

		// One attempt follows at most 10 redirects; a retry would double
		// the request count.
		if got := requests.Load(); got != 10 {
			t.Errorf("expected 10 requests, got %d", got)
		}
	})

	t.Run("absolute link is used verbatim", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/elsewhere/file.bin" {
				t.Errorf("unexpected path %q", r.URL.Path)
			}
			_, _ = w.Write([]byte("data")) //nolint:errcheck
		}))
		defer server.Close()

		client, err := NewClient("https://unused.example.com", "user@example.com", "token", 5*time.Second,
			WithHTTPClient(server.Client()))
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		var buf bytes.Buffer
		ref := model.AttachmentRef{Filename: "file.bin", DownloadURL: fmt.Sprintf("%s/elsewhere/file.bin", server.URL)}
		if err := client.Download(context.Background(), ref, &buf); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if buf.String() != "data" {
			t.Errorf("got %q, expected data", buf.String())
		}
	})
}
