package dropbox

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/comoco/mysqldump/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upload struct {
	mu      sync.Mutex
	content strings.Builder
	path    string
	offsets []int64
	tokens  int
}

func newDropboxServer(t *testing.T, u *upload) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.tokens++
		u.mu.Unlock()

		assert.Equal(t, "refresh", r.FormValue("refresh_token"))
		fmt.Fprintln(w, `{"access_token":"token","token_type":"bearer","expires_in":14400}`)
	})

	mux.HandleFunc(startPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		fmt.Fprintln(w, `{"session_id":"session-1"}`)
	})

	chunk := func(w http.ResponseWriter, r *http.Request, param any) {
		assert.NoError(t, json.Unmarshal([]byte(r.Header.Get("Dropbox-API-Arg")), param))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		u.mu.Lock()
		u.content.Write(body)
		u.mu.Unlock()

		fmt.Fprintln(w, "{}")
	}

	mux.HandleFunc(appendPath, func(w http.ResponseWriter, r *http.Request) {
		var param appendParam
		chunk(w, r, &param)

		u.mu.Lock()
		u.offsets = append(u.offsets, param.Cursor.Offset)
		u.mu.Unlock()
	})

	mux.HandleFunc(finishPath, func(w http.ResponseWriter, r *http.Request) {
		var param finishParam
		chunk(w, r, &param)

		u.mu.Lock()
		u.offsets = append(u.offsets, param.Cursor.Offset)
		u.path = param.Commit.Path
		u.mu.Unlock()
	})

	svr := httptest.NewServer(mux)
	t.Cleanup(svr.Close)

	return svr
}

func newTestDropbox(url string, chunkSize int) *Dropbox {
	return &Dropbox{
		Path:         "/backup/app.sql",
		RefreshToken: "refresh",
		ClientId:     "client",
		ClientSecret: "secret",
		authURL:      url,
		contentURL:   url,
		chunkSize:    chunkSize,
	}
}

func TestSave(t *testing.T) {
	var u upload
	svr := newDropboxServer(t, &u)

	dropbox := newTestDropbox(svr.URL, 4)

	err := dropbox.Save(strings.NewReader("CREATE TABLE users;"), storage.PathGenerator(true, false))
	require.NoError(t, err)

	assert.Equal(t, "CREATE TABLE users;", u.content.String())
	assert.Equal(t, "/backup/app.sql.gz", u.path)
	assert.Equal(t, []int64{0, 4, 8, 12, 16}, u.offsets)
	assert.Equal(t, 1, u.tokens)
}

func TestSaveExactChunk(t *testing.T) {
	var u upload
	svr := newDropboxServer(t, &u)

	dropbox := newTestDropbox(svr.URL, 4)

	require.NoError(t, dropbox.Save(strings.NewReader("abcdefgh"), storage.PathGenerator(false, false)))

	assert.Equal(t, "abcdefgh", u.content.String())
	assert.Equal(t, []int64{0, 4, 8}, u.offsets)
	assert.Equal(t, "/backup/app.sql", u.path)
}

func TestSaveStartFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"access_token":"token","expires_in":14400}`)
	})
	mux.HandleFunc(startPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintln(w, "too_many_write_operations")
	})

	svr := httptest.NewServer(mux)
	defer svr.Close()

	dropbox := newTestDropbox(svr.URL, 4)

	err := dropbox.Save(strings.NewReader("dump"), storage.PathGenerator(false, false))
	assert.ErrorContains(t, err, "failed to start dropbox upload session")
	assert.ErrorContains(t, err, "too_many_write_operations")
}

func TestSaveTokenFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintln(w, "invalid_grant")
	})

	svr := httptest.NewServer(mux)
	defer svr.Close()

	err := newTestDropbox(svr.URL, 4).Save(strings.NewReader("dump"), storage.PathGenerator(false, false))
	assert.ErrorContains(t, err, "invalid_grant")
}

func TestHasTokenExpired(t *testing.T) {
	d := &Dropbox{}
	assert.True(t, d.hasTokenExpired())

	d.accessToken = "token"
	d.expiredAt = time.Now().Add(expiryGap + time.Minute)
	assert.False(t, d.hasTokenExpired())

	d.expiredAt = time.Now().Add(expiryGap - time.Second)
	assert.True(t, d.hasTokenExpired())
}
