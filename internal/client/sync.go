package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/adri6412/cloud-saves-server/internal/archive"
	"github.com/adri6412/cloud-saves-server/internal/config"
	"github.com/adri6412/cloud-saves-server/internal/prompt"
	"github.com/adri6412/cloud-saves-server/internal/util"
)

// Syncer drives registration, freshness comparison, and transfers for one
// client invocation.
type Syncer struct {
	cfg      *config.Config
	cfgPath  string
	api      *API
	prompter prompt.Prompter
	log      zerolog.Logger
}

func NewSyncer(cfg *config.Config, cfgPath string, api *API, prompter prompt.Prompter, log zerolog.Logger) *Syncer {
	return &Syncer{cfg: cfg, cfgPath: cfgPath, api: api, prompter: prompter, log: log}
}

// EnsureCredentials makes sure the config holds a working nickname/API key
// pair, registering (or re-registering) as needed and persisting the result.
// A validation failure other than an invalid key is connectivity and
// propagates untouched.
func (s *Syncer) EnsureCredentials(ctx context.Context) error {
	if s.cfg.Client.Nickname == "" || s.cfg.Client.APIKey == "" {
		return s.register(ctx, "")
	}

	err := s.api.Validate(ctx)
	if errors.Is(err, ErrInvalidAPIKey) {
		s.log.Warn().Str("nickname", s.cfg.Client.Nickname).Msg("stored api key rejected, re-registering")
		return s.register(ctx, s.cfg.Client.Nickname)
	}
	if err != nil {
		return fmt.Errorf("validate credentials: %w", err)
	}
	return nil
}

// register loops until the server accepts a nickname, reprompting on every
// collision, then persists the new credentials.
func (s *Syncer) register(ctx context.Context, nickname string) error {
	if nickname == "" {
		var err error
		nickname, err = s.prompter.PromptText("Enter your nickname")
		if err != nil {
			return err
		}
	}

	for {
		key, err := s.api.Register(ctx, nickname)
		if errors.Is(err, ErrNicknameTaken) {
			nickname, err = s.prompter.PromptText("Nickname exists. Choose another")
			if err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		s.cfg.Client.Nickname = nickname
		s.cfg.Client.APIKey = key
		s.api.SetAPIKey(key)

		path, err := config.SaveCredentials(s.cfgPath, nickname, key)
		if err != nil {
			return fmt.Errorf("persist credentials: %w", err)
		}
		s.cfgPath = path
		s.log.Info().Str("nickname", nickname).Msg("registered")
		return nil
	}
}

// Upload packs the configured save directory and sends it to the server.
func (s *Syncer) Upload(ctx context.Context, emulator string) error {
	dir, err := s.savePath(emulator)
	if err != nil {
		return err
	}

	blob, err := archive.Pack(dir)
	if err != nil {
		return err
	}
	if err := s.api.UploadSave(ctx, emulator, bytes.NewReader(blob)); err != nil {
		return err
	}
	s.log.Info().Str("emulator", emulator).Int("size", len(blob)).Msg("save uploaded")
	return nil
}

// Download fetches the remote save and unpacks it over the local directory.
// When local saves are fresher than the server copy the user is offered an
// upload instead; declining still overwrites local state with the remote
// blob, matching the original sync policy.
func (s *Syncer) Download(ctx context.Context, emulator string) error {
	dir, err := s.savePath(emulator)
	if err != nil {
		return err
	}

	remote, err := s.api.SaveInfo(ctx, emulator)
	if errors.Is(err, ErrNoRemoteSave) {
		s.log.Info().Str("emulator", emulator).Msg("no save on server yet")
		return nil
	}
	if err != nil {
		return err
	}

	local, err := util.LatestMtime(dir)
	if err != nil {
		return err
	}

	if local.After(remote) {
		upload, err := s.prompter.PromptYesNo("Local saves are newer than server. Upload them?")
		if err != nil {
			return err
		}
		if upload {
			return s.Upload(ctx, emulator)
		}
	}

	blob, modified, err := s.api.DownloadSave(ctx, emulator)
	if errors.Is(err, ErrNoRemoteSave) {
		s.log.Info().Str("emulator", emulator).Msg("no save on server yet")
		return nil
	}
	if err != nil {
		return err
	}

	if err := archive.Unpack(blob, dir); err != nil {
		return err
	}
	s.log.Info().Str("emulator", emulator).Time("modified", modified).Msg("save downloaded")
	return nil
}

func (s *Syncer) savePath(emulator string) (string, error) {
	dir, ok := s.cfg.Client.SavePaths[emulator]
	if !ok || dir == "" {
		return "", fmt.Errorf("no save path configured for emulator %q", emulator)
	}
	return dir, nil
}
