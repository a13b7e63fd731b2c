package persist

import (
	"github.com/rs/zerolog"
)

// CleanupJob removes expired draft snapshots independently of CheckForDraft,
// so abandoned sessions do not leave blobs behind. Scheduled via cron.
type CleanupJob struct {
	slot *Slot
	log  zerolog.Logger
}

// NewCleanupJob creates a new snapshot cleanup job.
func NewCleanupJob(slot *Slot, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		slot: slot,
		log:  log.With().Str("job", "snapshot_cleanup").Logger(),
	}
}

// Run deletes all expired snapshots.
func (j *CleanupJob) Run() {
	deleted, err := j.slot.DeleteExpired()
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired snapshots")
		return
	}
	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Cleaned up expired draft snapshots")
	}
}
