package client

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/adri6412/cloud-saves-server/internal/archive"
	"github.com/adri6412/cloud-saves-server/internal/config"
	"github.com/adri6412/cloud-saves-server/internal/httpapi"
	"github.com/adri6412/cloud-saves-server/internal/prompt"
	"github.com/adri6412/cloud-saves-server/internal/savestore"
	"github.com/adri6412/cloud-saves-server/internal/storage"
	"github.com/adri6412/cloud-saves-server/internal/userstore"
)

type env struct {
	srv     *httptest.Server
	users   *userstore.Store
	cfg     *config.Config
	cfgPath string
	saveDir string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	tmp := t.TempDir()

	users := userstore.Open(filepath.Join(tmp, "users.json"))
	saves := savestore.New(storage.NewLocal(filepath.Join(tmp, "saves")))
	srv := httptest.NewServer(httpapi.NewServer(users, saves, zerolog.Nop()).Router())
	t.Cleanup(srv.Close)

	saveDir := filepath.Join(tmp, "local", "mesen")
	cfg := &config.Config{
		Client: config.ClientConfig{
			ServerURL: srv.URL,
			SavePaths: map[string]string{"mesen": saveDir},
		},
	}
	return &env{
		srv:     srv,
		users:   users,
		cfg:     cfg,
		cfgPath: filepath.Join(tmp, "cloudsave.yaml"),
		saveDir: saveDir,
	}
}

func (e *env) syncer(t *testing.T, p prompt.Prompter) *Syncer {
	t.Helper()
	api := NewAPI(e.cfg.Client.ServerURL, e.cfg.Client.APIKey)
	return NewSyncer(e.cfg, e.cfgPath, api, p, zerolog.Nop())
}

func (e *env) registered(t *testing.T, nickname string) *Syncer {
	t.Helper()
	key, err := e.users.Register(nickname)
	require.NoError(t, err)
	e.cfg.Client.Nickname = nickname
	e.cfg.Client.APIKey = key
	return e.syncer(t, &prompt.Scripted{})
}

func writeSave(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o640))
}

func touchAll(t *testing.T, dir string, when time.Time) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		require.NoError(t, os.Chtimes(filepath.Join(dir, entry.Name()), when, when))
	}
}

func TestEnsureCredentialsFirstRun(t *testing.T) {
	e := newEnv(t)
	syncer := e.syncer(t, &prompt.Scripted{Texts: []string{"alice"}})

	require.NoError(t, syncer.EnsureCredentials(context.Background()))
	require.Equal(t, "alice", e.cfg.Client.Nickname)
	require.NotEmpty(t, e.cfg.Client.APIKey)

	_, ok := e.users.Resolve(e.cfg.Client.APIKey)
	require.True(t, ok)

	data, err := os.ReadFile(e.cfgPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "alice")
}

func TestEnsureCredentialsValidKeyNoPrompt(t *testing.T) {
	e := newEnv(t)
	syncer := e.registered(t, "alice")
	// Scripted prompter with no answers: any prompt fails the flow.
	require.NoError(t, syncer.EnsureCredentials(context.Background()))
}

func TestEnsureCredentialsReRegistersOnInvalidKey(t *testing.T) {
	e := newEnv(t)
	_, err := e.users.Register("alice")
	require.NoError(t, err)

	e.cfg.Client.Nickname = "alice"
	e.cfg.Client.APIKey = "stale-key"
	// Stored nickname is retried first; it collides, so a new one is prompted.
	syncer := e.syncer(t, &prompt.Scripted{Texts: []string{"alice2"}})

	require.NoError(t, syncer.EnsureCredentials(context.Background()))
	require.Equal(t, "alice2", e.cfg.Client.Nickname)

	user, ok := e.users.Resolve(e.cfg.Client.APIKey)
	require.True(t, ok)
	require.Equal(t, "alice2", user.Nickname)
}

func TestEnsureCredentialsConnectivityErrorPropagates(t *testing.T) {
	e := newEnv(t)
	syncer := e.registered(t, "alice")
	e.srv.Close()

	err := syncer.EnsureCredentials(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidAPIKey)
	// Connectivity failures must not silently trigger re-registration.
	require.Equal(t, "alice", e.cfg.Client.Nickname)
}

func TestUploadThenDownloadRoundTrip(t *testing.T) {
	e := newEnv(t)
	syncer := e.registered(t, "alice")
	ctx := context.Background()

	writeSave(t, e.saveDir, "game.sav", "progress")
	require.NoError(t, syncer.Upload(ctx, "mesen"))

	require.NoError(t, os.RemoveAll(e.saveDir))
	require.NoError(t, syncer.Download(ctx, "mesen"))

	data, err := os.ReadFile(filepath.Join(e.saveDir, "game.sav"))
	require.NoError(t, err)
	require.Equal(t, "progress", string(data))
}

func TestDownloadNoRemoteSaveIsNoOp(t *testing.T) {
	e := newEnv(t)
	syncer := e.registered(t, "alice")

	require.NoError(t, syncer.Download(context.Background(), "mesen"))
	_, err := os.Stat(e.saveDir)
	require.True(t, os.IsNotExist(err))
}

func TestDownloadNoConflictDoesNotPrompt(t *testing.T) {
	e := newEnv(t)
	syncer := e.registered(t, "alice")
	ctx := context.Background()

	writeSave(t, e.saveDir, "game.sav", "remote")
	require.NoError(t, syncer.Upload(ctx, "mesen"))

	// Make local strictly older than the server copy.
	touchAll(t, e.saveDir, time.Now().Add(-2*time.Hour))
	require.NoError(t, os.Chtimes(e.saveDir, time.Now().Add(-2*time.Hour), time.Now().Add(-2*time.Hour)))

	// Prompter has no scripted answers, so any prompt would fail.
	require.NoError(t, syncer.Download(ctx, "mesen"))
}

func TestDownloadConflictDeclinedStillOverwrites(t *testing.T) {
	e := newEnv(t)
	syncer := e.registered(t, "alice")
	ctx := context.Background()

	writeSave(t, e.saveDir, "game.sav", "remote")
	require.NoError(t, syncer.Upload(ctx, "mesen"))

	writeSave(t, e.saveDir, "game.sav", "local-newer")
	touchAll(t, e.saveDir, time.Now().Add(time.Hour))

	syncer = e.syncer(t, &prompt.Scripted{Answers: []bool{false}})
	require.NoError(t, syncer.Download(ctx, "mesen"))

	data, err := os.ReadFile(filepath.Join(e.saveDir, "game.sav"))
	require.NoError(t, err)
	require.Equal(t, "remote", string(data))
}

func TestDownloadConflictAcceptedUploadsInstead(t *testing.T) {
	e := newEnv(t)
	syncer := e.registered(t, "alice")
	ctx := context.Background()

	writeSave(t, e.saveDir, "game.sav", "remote")
	require.NoError(t, syncer.Upload(ctx, "mesen"))

	writeSave(t, e.saveDir, "game.sav", "local-newer")
	touchAll(t, e.saveDir, time.Now().Add(time.Hour))

	syncer = e.syncer(t, &prompt.Scripted{Answers: []bool{true}})
	require.NoError(t, syncer.Download(ctx, "mesen"))

	// Local copy kept, server copy replaced.
	data, err := os.ReadFile(filepath.Join(e.saveDir, "game.sav"))
	require.NoError(t, err)
	require.Equal(t, "local-newer", string(data))

	blob, _, err := syncer.api.DownloadSave(ctx, "mesen")
	require.NoError(t, err)
	dst := filepath.Join(t.TempDir(), "out")
	require.NoError(t, archive.Unpack(blob, dst))
	data, err = os.ReadFile(filepath.Join(dst, "game.sav"))
	require.NoError(t, err)
	require.Equal(t, "local-newer", string(data))
}

func TestUploadUnknownEmulator(t *testing.T) {
	e := newEnv(t)
	syncer := e.registered(t, "alice")
	require.Error(t, syncer.Upload(context.Background(), "gamecube"))
}
