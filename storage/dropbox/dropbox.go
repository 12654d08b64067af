package dropbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/comoco/mysqldump/storage"
)

const (
	defaultAuthURL    = "https://api.dropboxapi.com"
	defaultContentURL = "https://content.dropboxapi.com"

	tokenPath  = "/oauth2/token"
	startPath  = "/2/files/upload_session/start"
	appendPath = "/2/files/upload_session/append_v2"
	finishPath = "/2/files/upload_session/finish"

	MB = 1 << 20

	// Dropbox rejects upload session requests above 150MB.
	DefaultChunkSize = 150 * MB

	// The access token is refreshed this long before it really expires.
	expiryGap = 10 * time.Second
)

type cursor struct {
	Offset    int64  `json:"offset"`
	SessionId string `json:"session_id"`
}

type commit struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
}

type startParam struct {
	Close bool `json:"close"`
}

type appendParam struct {
	Close  bool   `json:"close"`
	Cursor cursor `json:"cursor"`
}

type finishParam struct {
	Cursor cursor `json:"cursor"`
	Commit commit `json:"commit"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   uint   `json:"expires_in"`
}

type sessionResponse struct {
	SessionId string `json:"session_id"`
}

// Dropbox uploads a dump through an upload session, one chunk per request.
type Dropbox struct {
	Path         string `yaml:"path"`
	RefreshToken string `yaml:"refreshtoken"`
	ClientId     string `yaml:"clientid"`
	ClientSecret string `yaml:"clientsecret"`

	accessToken string
	expiredAt   time.Time

	client     *http.Client
	authURL    string
	contentURL string
	chunkSize  int
}

func (dropbox *Dropbox) init() {
	if dropbox.client == nil {
		dropbox.client = &http.Client{Timeout: 10 * time.Minute}
	}

	if dropbox.authURL == "" {
		dropbox.authURL = defaultAuthURL
	}

	if dropbox.contentURL == "" {
		dropbox.contentURL = defaultContentURL
	}

	if dropbox.chunkSize <= 0 {
		dropbox.chunkSize = DefaultChunkSize
	}
}

func (dropbox *Dropbox) Save(reader io.Reader, pathGenerator storage.PathGeneratorFunc) error {
	dropbox.init()

	path := pathGenerator(dropbox.Path)

	sessionId, err := dropbox.startSession()
	if err != nil {
		return err
	}

	slog.Debug("started dropbox upload session", slog.String("session", sessionId))

	var offset int64
	buf := make([]byte, dropbox.chunkSize)

	for {
		n, readErr := io.ReadFull(reader, buf)

		switch {
		case readErr == nil:
			if err := dropbox.appendSession(buf[:n], sessionId, offset); err != nil {
				return err
			}

			offset += int64(n)
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			if err := dropbox.finishSession(buf[:n], sessionId, offset, path); err != nil {
				return err
			}

			slog.Debug("uploaded dump to dropbox", slog.String("path", path), slog.Int64("size", offset+int64(n)))
			return nil
		default:
			return fmt.Errorf("failed to read dump for dropbox: %w", readErr)
		}
	}
}

func (dropbox *Dropbox) hasTokenExpired() bool {
	if dropbox.accessToken == "" || dropbox.expiredAt.IsZero() {
		return true
	}

	return time.Now().After(dropbox.expiredAt.Add(-expiryGap))
}

func (dropbox *Dropbox) refreshAccessToken() error {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {dropbox.RefreshToken},
		"client_id":     {dropbox.ClientId},
		"client_secret": {dropbox.ClientSecret},
	}

	endpoint := dropbox.authURL + tokenPath
	res, err := dropbox.client.PostForm(endpoint, data)
	if err != nil {
		return fmt.Errorf("failed to request dropbox oauth token: %w", err)
	}

	body, err := readBody(endpoint, res)
	if err != nil {
		return err
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return fmt.Errorf("could not unmarshal dropbox oauth token response: %w", err)
	}

	dropbox.accessToken = token.AccessToken
	dropbox.expiredAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)

	return nil
}

func (dropbox *Dropbox) startSession() (string, error) {
	body, err := dropbox.send(startPath, nil, startParam{})
	if err != nil {
		return "", fmt.Errorf("failed to start dropbox upload session: %w", err)
	}

	var session sessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return "", fmt.Errorf("could not unmarshal dropbox upload session response: %w", err)
	}

	if session.SessionId == "" {
		return "", errors.New("dropbox returned an empty upload session id")
	}

	return session.SessionId, nil
}

func (dropbox *Dropbox) appendSession(data []byte, sessionId string, offset int64) error {
	_, err := dropbox.send(appendPath, data, appendParam{
		Cursor: cursor{Offset: offset, SessionId: sessionId},
	})

	return err
}

func (dropbox *Dropbox) finishSession(data []byte, sessionId string, offset int64, path string) error {
	_, err := dropbox.send(finishPath, data, finishParam{
		Cursor: cursor{Offset: offset, SessionId: sessionId},
		Commit: commit{Path: path, Mode: "overwrite"},
	})

	return err
}

func (dropbox *Dropbox) send(path string, data []byte, param any) ([]byte, error) {
	if dropbox.hasTokenExpired() {
		if err := dropbox.refreshAccessToken(); err != nil {
			return nil, err
		}
	}

	arg, err := json.Marshal(param)
	if err != nil {
		return nil, fmt.Errorf("could not encode dropbox api arg: %w", err)
	}

	endpoint := dropbox.contentURL + path
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", "Bearer "+dropbox.accessToken)
	req.Header.Set("Dropbox-API-Arg", string(arg))

	res, err := dropbox.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send dropbox request: %w", err)
	}

	return readBody(endpoint, res)
}

func readBody(endpoint string, res *http.Response) ([]byte, error) {
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Error("could not close dropbox response body", slog.Any("error", err))
		}
	}()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read dropbox response body: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request %s is not successful, get status code: %d, body: %s", endpoint, res.StatusCode, string(body))
	}

	return body, nil
}
