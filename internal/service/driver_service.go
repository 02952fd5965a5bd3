// internal/service/driver_service.go
package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sportapp/campaign-dispatcher/internal/model"
	"github.com/sportapp/campaign-dispatcher/internal/queue"
	"github.com/sportapp/campaign-dispatcher/internal/repository"
)

const (
	// DefaultBatchSize caps how many pending recipients one driver pass
	// enqueues per campaign.
	DefaultBatchSize = 50

	driverLockKey = "campaign_driver:lock"
	driverLockTTL = 55 * time.Second
)

// DriverService is the periodic campaign batch driver: it scans campaigns in
// sending state, enqueues a bounded batch of pending recipients as dispatch
// jobs, and detects completion. Correctness under overlapping runs comes from
// the dispatch job's own idempotency guard; the Redis lock is only a
// performance optimization to avoid redundant enqueues.
type DriverService struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	Queue         queue.Publisher

	// Redis is optional; nil disables the non-overlap lock.
	Redis *redis.Client

	BatchSize int
	Now       func() time.Time

	workerID string
}

func (d *DriverService) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *DriverService) batchSize() int {
	if d.BatchSize > 0 {
		return d.BatchSize
	}
	return DefaultBatchSize
}

// Run executes one driver pass.
func (d *DriverService) Run(ctx context.Context) error {
	if d.Redis != nil {
		ok, err := d.acquireLock(ctx)
		if err != nil {
			log.Printf("[driver] lock check degraded, proceeding: %v", err)
		} else if !ok {
			return nil
		} else {
			defer d.releaseLock(ctx)
		}
	}

	campaigns, err := d.CampaignRepo.ListSendingDue(d.now())
	if err != nil {
		return fmt.Errorf("failed to list due campaigns: %w", err)
	}

	for _, campaign := range campaigns {
		if err := d.processCampaign(campaign); err != nil {
			// Campaign failures are local: keep driving the others.
			log.Printf("[driver] campaign %d: %v", campaign.ID, err)
		}
	}
	return nil
}

func (d *DriverService) processCampaign(campaign *model.Campaign) error {
	pending, err := d.RecipientRepo.ListPending(campaign.ID, d.batchSize())
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		return d.checkCompletion(campaign)
	}

	enqueued := 0
	for _, rec := range pending {
		job := queue.DispatchJob{CampaignID: campaign.ID, RecipientID: rec.ID}
		if err := d.Queue.PublishDispatch(job); err != nil {
			log.Printf("[driver] failed to enqueue recipient %d: %v", rec.ID, err)
			continue
		}
		enqueued++
	}
	log.Printf("[driver] campaign=%d enqueued=%d", campaign.ID, enqueued)
	return nil
}

// checkCompletion transitions a sending campaign to sent once every recipient
// has left pending through the sent path. Campaigns with failed recipients
// stay in sending for operator attention.
func (d *DriverService) checkCompletion(campaign *model.Campaign) error {
	counts, err := d.RecipientRepo.CountByStatus(campaign.ID)
	if err != nil {
		return err
	}
	if counts[model.RecipientStatusPending] > 0 || counts[model.RecipientStatusSending] > 0 {
		return nil
	}

	// Opened/clicked recipients passed through sent first.
	delivered := counts[model.RecipientStatusSent] + counts[model.RecipientStatusOpened] + counts[model.RecipientStatusClicked]
	if delivered < campaign.TotalRecipients {
		return nil
	}

	ok, err := d.CampaignRepo.MarkSent(campaign.ID, d.now())
	if err != nil {
		return err
	}
	if ok {
		log.Printf("[driver] campaign=%d completed, %d recipients delivered", campaign.ID, delivered)
	}
	return nil
}

func (d *DriverService) acquireLock(ctx context.Context) (bool, error) {
	if d.workerID == "" {
		host, _ := os.Hostname()
		d.workerID = fmt.Sprintf("driver-%s-%d", host, os.Getpid())
	}
	return d.Redis.SetNX(ctx, driverLockKey, d.workerID, driverLockTTL).Result()
}

func (d *DriverService) releaseLock(ctx context.Context) {
	// Only release our own lock; a crashed holder's lock expires via TTL.
	val, err := d.Redis.Get(ctx, driverLockKey).Result()
	if err == nil && val == d.workerID {
		d.Redis.Del(ctx, driverLockKey)
	}
}
