package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mmcdole/gofeed"

	"freopen_bot/internal/model"
)

type mockTransport struct {
	body       string
	statusCode int
	err        error
	gotUA      string
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.gotUA = req.Header.Get("User-Agent")
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func TestFetch(t *testing.T) {
	xml := loadFixture(t, "../../testdata/sample.xml")

	tests := []struct {
		name      string
		transport *mockTransport
		wantTitle string
		wantItems int
		wantErr   bool
	}{
		{
			name:      "successful fetch",
			transport: &mockTransport{body: xml, statusCode: 200},
			wantTitle: "Fox Gazette",
			wantItems: 5,
		},
		{
			name:      "http error status",
			transport: &mockTransport{body: "not found", statusCode: 404},
			wantErr:   true,
		},
		{
			name:      "network error",
			transport: &mockTransport{err: io.ErrUnexpectedEOF},
			wantErr:   true,
		},
		{
			name:      "invalid xml",
			transport: &mockTransport{body: "not xml at all", statusCode: 200},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.transport)
			feed, err := f.Fetch(context.Background(), "https://example.com/rss")

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if diff := cmp.Diff(tt.wantTitle, feed.Title); diff != "" {
				t.Errorf("title mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantItems, len(feed.Items)); diff != "" {
				t.Errorf("item count mismatch (-want +got):\n%s", diff)
			}
			if tt.transport.gotUA == "" {
				t.Error("expected User-Agent header to be set")
			}
		})
	}
}

func TestFetchSizeLimit(t *testing.T) {
	xml := loadFixture(t, "../../testdata/sample.xml")

	t.Run("at limit", func(t *testing.T) {
		body := xml + strings.Repeat(" ", maxFeedSize-len(xml))
		feed, err := New(&mockTransport{body: body, statusCode: 200}).Fetch(context.Background(), "https://foxes.example.com/rss")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff("Fox Gazette", feed.Title); diff != "" {
			t.Errorf("title mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		body := xml + strings.Repeat(" ", maxFeedSize-len(xml)+1)
		_, err := New(&mockTransport{body: body, statusCode: 200}).Fetch(context.Background(), "https://foxes.example.com/rss")
		if err == nil || !strings.Contains(err.Error(), "exceeds") {
			t.Fatalf("got %v, want size error", err)
		}
	})
}

func TestEntriesKeepDocumentOrder(t *testing.T) {
	xml := loadFixture(t, "../../testdata/sample.xml")
	f := New(&mockTransport{body: xml, statusCode: 200})

	got, err := f.Entries(context.Background(), "https://foxes.example.com/rss")
	if err != nil {
		t.Fatalf("entries: %v", err)
	}

	var ids []string
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	wantIDs := []string{"fox-5", "fox-4", "fox-3", "fox-2"}
	if diff := cmp.Diff(wantIDs, ids[:4]); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(ids[4], "sha256:") {
		t.Errorf("item without guid should get a hash id, got %q", ids[4])
	}

	want := model.FeedEntry{ID: "fox-5", Title: "Fox spotted on the roof", Link: "https://foxes.example.com/posts/5"}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("first entry mismatch (-want +got):\n%s", diff)
	}
}

func TestEntriesPropagatesErrors(t *testing.T) {
	f := New(&mockTransport{statusCode: 500})
	if _, err := f.Entries(context.Background(), "https://example.com/rss"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestItemGUID(t *testing.T) {
	tests := []struct {
		name     string
		item     *gofeed.Item
		wantGUID string
		hasHash  bool
	}{
		{
			name:     "with guid",
			item:     &gofeed.Item{GUID: "abc-123"},
			wantGUID: "abc-123",
		},
		{
			name:    "without guid generates hash",
			item:    &gofeed.Item{Title: "Post Without GUID", Link: "https://example.com/post-1"},
			hasHash: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ItemGUID(tt.item)
			if tt.hasHash {
				if !strings.HasPrefix(got, "sha256:") {
					t.Errorf("expected sha256 prefix, got %q", got)
				}
				if again := ItemGUID(tt.item); again != got {
					t.Errorf("hash not stable: %q vs %q", got, again)
				}
				return
			}
			if diff := cmp.Diff(tt.wantGUID, got); diff != "" {
				t.Errorf("GUID mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToEntriesSkipsNil(t *testing.T) {
	got := ToEntries([]*gofeed.Item{nil, {GUID: "a", Title: "A", Link: "https://a"}})
	want := []model.FeedEntry{{ID: "a", Title: "A", Link: "https://a"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ToEntries mismatch (-want +got):\n%s", diff)
	}
}
