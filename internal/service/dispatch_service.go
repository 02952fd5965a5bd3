// internal/service/dispatch_service.go
package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	appErrors "github.com/sportapp/campaign-dispatcher/internal/errors"
	"github.com/sportapp/campaign-dispatcher/internal/mailer"
	"github.com/sportapp/campaign-dispatcher/internal/model"
	"github.com/sportapp/campaign-dispatcher/internal/queue"
	"github.com/sportapp/campaign-dispatcher/internal/render"
	"github.com/sportapp/campaign-dispatcher/internal/repository"
	"github.com/sportapp/campaign-dispatcher/internal/sendcap"
)

const (
	// MaxSendAttempts bounds transport retries per recipient.
	MaxSendAttempts = 3

	// windowRetryDelay is how long a job defers when the tenant's sending
	// window or daily cap blocks it. No retry is consumed.
	windowRetryDelay = time.Hour
)

// transportRetryDelay backs off between transport retries.
func transportRetryDelay(attempt int) time.Duration {
	return time.Duration(attempt+1) * 30 * time.Second
}

// DispatchService executes one dispatch job: resolve the tenant's mail
// configuration, render, send, and advance the recipient state machine. All
// writes touch only the one recipient row the job owns.
type DispatchService struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	CustomerRepo  repository.CustomerRepositoryInterface
	SettingRepo   repository.EmailSettingRepositoryInterface
	TemplateRepo  repository.TemplateRepositoryInterface
	Sender        mailer.Sender
	Queue         queue.Publisher

	// SendCap is optional; nil disables daily cap enforcement.
	SendCap *sendcap.Counter

	// BaseURL is the public origin for tracking and unsubscribe links.
	BaseURL string

	// Now is replaceable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *DispatchService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Dispatch processes one (campaign, recipient) job. It never returns an
// error for conditions it has already handled (deferral, retry republish,
// terminal failure written to the row); the returned error is only for
// failures of the handling itself, so the consumer can log them.
func (s *DispatchService) Dispatch(ctx context.Context, job queue.DispatchJob) error {
	rec, err := s.RecipientRepo.GetByID(job.RecipientID)
	if err != nil {
		return err
	}
	if rec == nil {
		log.Printf("[dispatch] recipient %d not found, dropping job", job.RecipientID)
		return nil
	}

	campaign, err := s.CampaignRepo.GetByID(rec.CampaignID)
	if err != nil {
		var notFound *appErrors.ErrCampaignNotFound
		if errors.As(err, &notFound) {
			log.Printf("[dispatch] campaign %d gone, dropping recipient %d", rec.CampaignID, rec.ID)
			return nil
		}
		return err
	}

	// A cancelled campaign does not revoke queued jobs; they no-op here and
	// the recipient stays pending.
	if campaign.Status == model.CampaignStatusCancelled {
		log.Printf("[dispatch] campaign %d cancelled, skipping recipient %d", campaign.ID, rec.ID)
		return nil
	}

	// Idempotency guard: only pending rows are dispatchable. Duplicate
	// deliveries and driver overlap land here.
	if rec.Status != model.RecipientStatusPending {
		return nil
	}

	setting, err := s.SettingRepo.GetActiveByUserID(campaign.UserID)
	if err != nil {
		var noSettings *appErrors.ErrNoActiveEmailSettings
		if errors.As(err, &noSettings) {
			// Fatal for this job: retrying cannot succeed without operator
			// intervention.
			if _, ferr := s.RecipientRepo.MarkFailed(rec.ID, noSettings.Error()); ferr != nil {
				return ferr
			}
			log.Printf("[dispatch] campaign=%d recipient=%d failed: %v", campaign.ID, rec.ID, noSettings)
			return nil
		}
		return err
	}

	now := s.now()
	if !setting.IsWithinSendingWindow(now) {
		log.Printf("[dispatch] outside sending window, deferring campaign=%d recipient=%d", campaign.ID, rec.ID)
		return s.Queue.PublishDispatchDelayed(job, windowRetryDelay)
	}

	if s.SendCap != nil {
		ok, err := s.SendCap.Allow(ctx, campaign.UserID, setting.DailySendLimit, setting.LocalDate(now))
		if err != nil {
			log.Printf("[dispatch] send cap check degraded: %v", err)
		}
		if !ok {
			log.Printf("[dispatch] daily send cap reached, deferring campaign=%d recipient=%d", campaign.ID, rec.ID)
			return s.Queue.PublishDispatchDelayed(job, windowRetryDelay)
		}
	}

	// Atomic claim: exactly one of any concurrent attempts for this row
	// proceeds past here.
	claimed, err := s.RecipientRepo.Claim(rec.ID)
	if err != nil {
		return err
	}
	if !claimed {
		if s.SendCap != nil {
			s.SendCap.Release(ctx, campaign.UserID, setting.LocalDate(now))
		}
		return nil
	}

	customer, err := s.CustomerRepo.GetByID(rec.RecipientID)
	if err != nil {
		return s.handleSendFailure(ctx, job, rec, err)
	}
	if customer == nil {
		// Recipient identity deleted after materialization; nothing to send.
		_, ferr := s.RecipientRepo.MarkFailed(rec.ID, "recipient no longer exists")
		return ferr
	}

	// Same template fallback as the admin preview, so what was previewed is
	// what gets delivered.
	subjectSrc, contentSrc, err := campaignContent(s.TemplateRepo, campaign)
	if err != nil {
		return s.handleSendFailure(ctx, job, rec, err)
	}

	subject, body := s.renderMessage(subjectSrc, contentSrc, setting, customer, rec.TrackingToken)

	msg := &mailer.Message{
		To:      customer.Email,
		ToName:  customer.Name,
		Subject: subject,
		HTML:    body,
	}
	if setting.TrackOpens {
		msg.Headers = map[string]string{
			"X-Campaign-ID":  strconv.Itoa(campaign.ID),
			"X-Recipient-ID": strconv.Itoa(rec.ID),
			"X-Tracking-ID":  rec.TrackingToken,
		}
	}

	if err := s.Sender.Send(ctx, setting, msg); err != nil {
		return s.handleSendFailure(ctx, job, rec, err)
	}

	if _, err := s.RecipientRepo.MarkSent(rec.ID, s.now()); err != nil {
		return err
	}
	if err := s.CampaignRepo.IncrementSentCount(campaign.ID); err != nil {
		return err
	}

	log.Printf("[dispatch] sent campaign=%d recipient=%d email=%s", campaign.ID, rec.ID, customer.Email)
	return nil
}

// handleSendFailure applies the retry policy after a claimed row's send
// failed: release back to pending and republish while attempts remain,
// otherwise leave the row failed with the last transport error verbatim.
func (s *DispatchService) handleSendFailure(ctx context.Context, job queue.DispatchJob, rec *model.CampaignRecipient, sendErr error) error {
	nextAttempt := job.Attempt + 1
	if nextAttempt < MaxSendAttempts {
		if _, err := s.RecipientRepo.ReleaseForRetry(rec.ID, sendErr.Error()); err != nil {
			return err
		}
		retry := job
		retry.Attempt = nextAttempt
		log.Printf("[dispatch] transient failure campaign=%d recipient=%d attempt=%d: %v",
			rec.CampaignID, rec.ID, job.Attempt, sendErr)
		return s.Queue.PublishDispatchDelayed(retry, transportRetryDelay(job.Attempt))
	}

	if _, err := s.RecipientRepo.MarkFailed(rec.ID, sendErr.Error()); err != nil {
		return err
	}
	log.Printf("[dispatch] giving up campaign=%d recipient=%d after %d attempts: %v",
		rec.CampaignID, rec.ID, MaxSendAttempts, sendErr)
	return nil
}

// renderMessage builds the per-recipient variable map and renders subject and
// body; the tracking pixel is appended when the tenant tracks opens.
func (s *DispatchService) renderMessage(subjectSrc, contentSrc string, setting *model.EmailSetting, customer *model.Customer, token string) (subject, body string) {
	vars := map[string]string{
		"customer_name":    customer.Name,
		"customer_email":   customer.Email,
		"customer_phone":   customer.Phone,
		"website_name":     setting.MailFromName,
		"company_name":     setting.MailFromName,
		"unsubscribe_link": render.UnsubscribeURL(s.BaseURL, token),
	}

	subject = render.Render(subjectSrc, vars)
	body = render.Render(contentSrc, vars)
	if setting.TrackOpens {
		body = render.AppendTrackingPixel(body, s.BaseURL, token)
	}
	return subject, body
}

