// internal/service/cleanup_service.go
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sportapp/campaign-dispatcher/internal/repository"
)

// DefaultRetentionDays is how long finished campaigns are kept before the
// nightly cleanup removes them.
const DefaultRetentionDays = 90

// CleanupService removes sent and cancelled campaigns (and their recipient
// rows) once they age past the retention window. Draft and in-flight
// campaigns are never touched.
type CleanupService struct {
	CampaignRepo repository.CampaignRepositoryInterface

	// RetentionDays overrides DefaultRetentionDays when positive.
	RetentionDays int

	// Now is replaceable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *CleanupService) retentionDays() int {
	if s.RetentionDays > 0 {
		return s.RetentionDays
	}
	return DefaultRetentionDays
}

// Run executes one cleanup pass.
func (s *CleanupService) Run(ctx context.Context) error {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	cutoff := now.AddDate(0, 0, -s.retentionDays())

	removed, err := s.CampaignRepo.PurgeTerminalOlderThan(cutoff)
	if err != nil {
		return fmt.Errorf("campaign cleanup failed: %w", err)
	}
	if removed > 0 {
		log.Printf("[cleanup] removed %d campaigns older than %s", removed, cutoff.Format("2006-01-02"))
	}
	return nil
}
