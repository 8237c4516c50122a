package services

import (
	"time"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/database"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func DoAutoDatabaseCleanup() {
	retention := viper.GetDuration("cleanup.retention")
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	deadline := time.Now().Add(-retention)
	log.Debug().Time("deadline", deadline).Msg("Now cleaning up entire database...")

	// Purge soft-deleted rows past retention
	var count int64
	for _, model := range database.SoftDeleteRange {
		tx := database.C.Unscoped().Delete(model, "deleted_at IS NOT NULL AND deleted_at <= ?", deadline)
		if tx.Error != nil {
			log.Error().Err(tx.Error).Msg("An error occurred when running database cleanup...")
		}
		count += tx.RowsAffected
	}

	log.Debug().Int64("affected", count).Msg("Clean up entire database accomplished.")
}
