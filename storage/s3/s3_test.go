package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/comoco/mysqldump/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3(t *testing.T) {
	s3 := NewS3("mysqldump", "/backup/dump.sql", "ap-southeast-2", "accessKey", "secret", "token")

	assert.Equal(t, "mysqldump", s3.Bucket)
	assert.Equal(t, "/backup/dump.sql", s3.Key)
	assert.Equal(t, "ap-southeast-2", s3.Region)
	assert.Equal(t, "accessKey", s3.AccessKeyId)
	assert.Equal(t, "secret", s3.SecretAccessKey)
	assert.Equal(t, "token", s3.SessionToken)
}

type fakeS3 struct {
	mu      sync.Mutex
	methods []string
	paths   []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.methods = append(f.methods, r.Method)
	f.paths = append(f.paths, r.URL.Path)
	f.mu.Unlock()

	io.Copy(io.Discard, r.Body)

	if r.Method == http.MethodGet {
		w.Header().Set("Content-Type", "application/octet-stream")
		io.WriteString(w, "jobs: []\n")
		return
	}

	w.Header().Set("ETag", `"etag"`)
	w.WriteHeader(http.StatusOK)
}

func newTestS3(endpoint, key string) *S3 {
	s3 := NewS3("backups", key, "us-east-1", "none", "none", "")
	s3.Endpoint = endpoint
	return s3
}

func TestSave(t *testing.T) {
	fake := &fakeS3{}
	server := httptest.NewServer(fake)
	defer server.Close()

	s3 := newTestS3(server.URL, "app/dump.sql")

	err := s3.Save(strings.NewReader("hello s3"), storage.PathGenerator(true, false))
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()

	require.Len(t, fake.paths, 1)
	assert.Equal(t, http.MethodPut, fake.methods[0])
	assert.Equal(t, "/backups/app/dump.sql.gz", fake.paths[0])
}

func TestSaveError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>InvalidAccessKeyId</Code><Message>invalid</Message></Error>`)
	}))
	defer server.Close()

	s3 := newTestS3(server.URL, "app/dump.sql")

	err := s3.Save(strings.NewReader("hello s3"), storage.PathGenerator(false, false))
	assert.ErrorContains(t, err, "failed to upload file to s3 bucket")
	assert.ErrorContains(t, err, "InvalidAccessKeyId")
}

func TestGetContent(t *testing.T) {
	fake := &fakeS3{}
	server := httptest.NewServer(fake)
	defer server.Close()

	s3 := newTestS3(server.URL, "jobs.yaml")

	content, err := s3.GetContent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jobs: []\n", string(content))
	assert.Equal(t, "/backups/jobs.yaml", fake.paths[0])
}
