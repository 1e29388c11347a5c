package services

import (
	"context"
	"fmt"

	"english_lab_go_backend/internal/utils/kvstore"

	"github.com/rs/zerolog"
)

const MigrationFlagKey = "personal-english-lab-migrated-to-remote"

// MigrationService copies local sessions to the remote store once. The
// persisted flag is only set after every session uploaded, so a failed run
// is repeated in full next time; uploads are idempotent upserts.
type MigrationService struct {
	local    *LocalSessionStore
	flags    kvstore.Store
	uploader SessionUploader
	log      zerolog.Logger
}

func NewMigrationService(local *LocalSessionStore, flags kvstore.Store, uploader SessionUploader, log zerolog.Logger) *MigrationService {
	return &MigrationService{
		local:    local,
		flags:    flags,
		uploader: uploader,
		log:      log,
	}
}

func (m *MigrationService) HasMigrated(ctx context.Context) (bool, error) {
	v, ok, err := m.flags.Get(ctx, MigrationFlagKey)
	if err != nil {
		return false, fmt.Errorf("read migration flag: %w", err)
	}
	return ok && v == "true", nil
}

func (m *MigrationService) setMigrated(ctx context.Context) error {
	if err := m.flags.Set(ctx, MigrationFlagKey, "true"); err != nil {
		return fmt.Errorf("write migration flag: %w", err)
	}
	return nil
}

// Migrate reports false without doing anything when the migration already
// ran. Otherwise it uploads every local session in order and reports true
// once all of them are stored remotely.
func (m *MigrationService) Migrate(ctx context.Context) (bool, error) {
	done, err := m.HasMigrated(ctx)
	if err != nil {
		return false, err
	}
	if done {
		return false, nil
	}

	sessions := m.local.LoadAll(ctx)
	for _, session := range sessions {
		if err := m.uploader.SaveSession(ctx, session); err != nil {
			m.log.Error().Err(err).Str("sessionID", session.ID).Msg("Failed to migrate session")
			return false, fmt.Errorf("migrate session %s: %w", session.ID, err)
		}
	}

	if err := m.setMigrated(ctx); err != nil {
		return false, err
	}
	m.log.Info().Int("sessionCount", len(sessions)).Msg("Local sessions migrated")
	return true, nil
}
