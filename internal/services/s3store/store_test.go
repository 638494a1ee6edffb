package s3store_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"clipmill/internal/services"
	"clipmill/internal/services/s3store"
)

type fakeS3 struct {
	mu      sync.Mutex
	puts    map[string]string
	failPut bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		if f.failPut {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `<Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.puts[r.URL.Path] = string(body)
		f.mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
<Name>clips</Name><Prefix>batch/</Prefix><KeyCount>3</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>
<Contents><Key>batch/a.mp4</Key><Size>4</Size></Contents>
<Contents><Key>batch/nested/b.mp4</Key><Size>4</Size></Contents>
<Contents><Key>batch/c.mp4</Key><Size>4</Size></Contents>
</ListBucketResult>`)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newStore(t *testing.T, fake *fakeS3) *s3store.Store {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
	}
	return s3store.NewFromConfig(cfg, s3store.Options{
		Bucket:    "clips",
		Prefix:    "/batch/",
		Endpoint:  srv.URL,
		PathStyle: true,
	})
}

func TestUploadPutsUnderPrefix(t *testing.T) {
	fake := &fakeS3{puts: map[string]string{}}
	store := newStore(t, fake)
	local := filepath.Join(t.TempDir(), "vid_0.mp4")
	if err := os.WriteFile(local, []byte("clip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Upload(context.Background(), local); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	body, ok := fake.puts["/clips/batch/vid_0.mp4"]
	if !ok {
		t.Fatalf("expected PUT to /clips/batch/vid_0.mp4, got %v", fake.puts)
	}
	if !strings.Contains(body, "clip") {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestUploadFailureIsUploadError(t *testing.T) {
	store := newStore(t, &fakeS3{puts: map[string]string{}, failPut: true})
	local := filepath.Join(t.TempDir(), "vid_0.mp4")
	if err := os.WriteFile(local, []byte("clip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Upload(context.Background(), local); !errors.Is(err, services.ErrUpload) {
		t.Fatalf("expected ErrUpload, got %v", err)
	}
}

func TestListReturnsDirectChildren(t *testing.T) {
	store := newStore(t, &fakeS3{puts: map[string]string{}})
	names, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !slices.Equal(names, []string{"a.mp4", "c.mp4"}) {
		t.Fatalf("names = %q", names)
	}
	if store.Destination() != "s3://clips/batch" {
		t.Fatalf("Destination = %q", store.Destination())
	}
}
