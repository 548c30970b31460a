package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adri6412/cloud-saves-server/internal/httpapi"
)

// Client-side view of the protocol's error taxonomy. Everything else the
// server or transport produces is connectivity and propagates as-is.
var (
	ErrInvalidAPIKey = errors.New("invalid api key")
	ErrNicknameTaken = errors.New("nickname already exists")
	ErrNoRemoteSave  = errors.New("no save on server")
)

// API talks to the sync endpoint set.
type API struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewAPI(baseURL, apiKey string) *API {
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{},
	}
}

// SetAPIKey swaps the bearer key after a re-registration.
func (a *API) SetAPIKey(key string) { a.apiKey = key }

// Register asks the server for a new credential pair.
func (a *API) Register(ctx context.Context, nickname string) (string, error) {
	body, _ := json.Marshal(map[string]string{"nickname": nickname})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/register", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return "", fmt.Errorf("register %q: %w", nickname, ErrNicknameTaken)
	}
	if resp.StatusCode != http.StatusOK {
		return "", serverError("register", resp)
	}

	var reg struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return "", fmt.Errorf("register: decode response: %w", err)
	}
	return reg.APIKey, nil
}

// Validate checks the stored API key. ErrInvalidAPIKey is the exact signal
// that a re-registration is needed.
func (a *API) Validate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/validate", nil)
	if err != nil {
		return err
	}
	req.Header.Set(httpapi.HeaderAPIKey, a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return ErrInvalidAPIKey
	default:
		return serverError("validate", resp)
	}
}

// UploadSave streams blob to the server as a multipart upload. The body is
// produced through a pipe so the archive is never duplicated in memory.
func (a *API) UploadSave(ctx context.Context, emulator string, blob io.Reader) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		part, err := mw.CreateFormFile("file", emulator+".zip")
		if err != nil {
			pw.CloseWithError(err)
			return err
		}
		if _, err := io.Copy(part, blob); err != nil {
			pw.CloseWithError(err)
			return err
		}
		if err := mw.Close(); err != nil {
			pw.CloseWithError(err)
			return err
		}
		return pw.Close()
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/saves/%s", a.baseURL, emulator), pr)
	if err != nil {
		pr.CloseWithError(err)
		_ = g.Wait()
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(httpapi.HeaderAPIKey, a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		_ = g.Wait()
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := g.Wait(); err != nil {
			return fmt.Errorf("upload: %w", err)
		}
		return nil
	case http.StatusUnauthorized:
		// The server can reject before draining the body; the writer's
		// pipe error is noise at that point.
		_ = g.Wait()
		return ErrInvalidAPIKey
	default:
		_ = g.Wait()
		return serverError("upload", resp)
	}
}

// DownloadSave fetches the stored blob and its modified time.
func (a *API) DownloadSave(ctx context.Context, emulator string) ([]byte, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/saves/%s", a.baseURL, emulator), nil)
	if err != nil {
		return nil, time.Time{}, err
	}
	req.Header.Set(httpapi.HeaderAPIKey, a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, time.Time{}, ErrInvalidAPIKey
	case http.StatusNotFound:
		return nil, time.Time{}, ErrNoRemoteSave
	default:
		return nil, time.Time{}, serverError("download", resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("download: read body: %w", err)
	}
	modified := parseModified(resp.Header.Get(httpapi.HeaderModified))
	return data, modified, nil
}

// SaveInfo returns the remote modified time without transferring the blob.
func (a *API) SaveInfo(ctx context.Context, emulator string) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/saves/%s/info", a.baseURL, emulator), nil)
	if err != nil {
		return time.Time{}, err
	}
	req.Header.Set(httpapi.HeaderAPIKey, a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("save info: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return time.Time{}, ErrInvalidAPIKey
	case http.StatusNotFound:
		return time.Time{}, ErrNoRemoteSave
	default:
		return time.Time{}, serverError("save info", resp)
	}

	var info struct {
		Modified int64 `json:"modified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return time.Time{}, fmt.Errorf("save info: decode response: %w", err)
	}
	return time.Unix(info.Modified, 0), nil
}

func parseModified(header string) time.Time {
	unix, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}

func serverError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("%s: server returned %d: %s", op, resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("%s: server returned %d", op, resp.StatusCode)
}
