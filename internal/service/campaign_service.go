// internal/service/campaign_service.go
package service

import (
	"log"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/sportapp/campaign-dispatcher/internal/errors"
	"github.com/sportapp/campaign-dispatcher/internal/model"
	"github.com/sportapp/campaign-dispatcher/internal/render"
	"github.com/sportapp/campaign-dispatcher/internal/repository"
)

// CampaignService owns the admin-facing campaign operations: creation,
// listing, audience resolution (the send action), preview and cancel.
type CampaignService struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	CustomerRepo  repository.CustomerRepositoryInterface
	TemplateRepo  repository.TemplateRepositoryInterface
}

// SendResult reports what the send action materialized.
type SendResult struct {
	CampaignID      int    `json:"campaign_id"`
	TotalRecipients int    `json:"total_recipients"`
	Status          string `json:"status"`
}

// PreviewResult is the rendered subject/content for the admin preview.
type PreviewResult struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// CampaignDetails is a campaign plus its recipient status breakdown.
type CampaignDetails struct {
	*model.Campaign
	OpenRate  float64        `json:"open_rate"`
	ClickRate float64        `json:"click_rate"`
	Stats     map[string]int `json:"stats"`
}

type CreateCampaignInput struct {
	Name            string
	Subject         string
	Content         string
	EmailTemplateID *int
	ScheduledAt     *time.Time
	CustomerGroups  []int
}

func (s *CampaignService) CreateCampaign(userID int, in CreateCampaignInput) (*model.Campaign, error) {
	c := &model.Campaign{
		UserID:          userID,
		EmailTemplateID: in.EmailTemplateID,
		Name:            in.Name,
		Subject:         in.Subject,
		Content:         in.Content,
		Status:          model.CampaignStatusDraft,
		ScheduledAt:     in.ScheduledAt,
	}
	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}
	if len(in.CustomerGroups) > 0 {
		if err := s.CampaignRepo.AttachGroups(c.ID, in.CustomerGroups); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// getOwned loads a campaign and verifies ownership.
func (s *CampaignService) getOwned(userID, campaignID int) (*model.Campaign, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.UserID != userID {
		return nil, appErrors.NewNotCampaignOwner(campaignID, userID)
	}
	return campaign, nil
}

// Send resolves the campaign's audience and moves it from draft to sending.
// Group members are unioned, deduplicated by customer id and filtered to
// marketing consent; one pending recipient row with a fresh tracking token is
// created per survivor. The draft-status guard makes double resolution a
// rejected precondition, not a source of duplicates.
func (s *CampaignService) Send(userID, campaignID int) (*SendResult, error) {
	campaign, err := s.getOwned(userID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignStatusDraft {
		return nil, appErrors.NewInvalidCampaignStatus(campaignID, campaign.Status, "sent")
	}

	groupIDs, err := s.CampaignRepo.GroupIDs(campaignID)
	if err != nil {
		return nil, err
	}

	// Dedup and consent filtering happen in the query; this is a snapshot,
	// consent changes after resolution do not remove materialized rows.
	customers, err := s.CustomerRepo.ListConsentingGroupMembers(groupIDs)
	if err != nil {
		return nil, err
	}

	created := 0
	for _, customer := range customers {
		ok, err := s.RecipientRepo.CreateIfAbsent(campaignID, customer.ID, uuid.NewString())
		if err != nil {
			return nil, err
		}
		if ok {
			created++
		}
	}

	ok, err := s.CampaignRepo.BeginSending(campaignID, len(customers))
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with a concurrent send of the same draft.
		return nil, appErrors.NewInvalidCampaignStatus(campaignID, model.CampaignStatusSending, "sent")
	}

	log.Printf("[campaign] resolved campaign=%d recipients=%d (new=%d)", campaignID, len(customers), created)

	return &SendResult{
		CampaignID:      campaignID,
		TotalRecipients: len(customers),
		Status:          model.CampaignStatusSending,
	}, nil
}

// Preview renders the campaign subject and content against fixed sample data.
// Nothing is persisted and no tracking pixel is injected.
func (s *CampaignService) Preview(userID, campaignID int) (*PreviewResult, error) {
	campaign, err := s.getOwned(userID, campaignID)
	if err != nil {
		return nil, err
	}

	subject, content, err := campaignContent(s.TemplateRepo, campaign)
	if err != nil {
		return nil, err
	}

	owner, err := s.CustomerRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	websiteName := ""
	if owner != nil {
		websiteName = owner.WebsiteName
	}

	vars := render.SampleVariables(websiteName)
	return &PreviewResult{
		Subject: render.Render(subject, vars),
		Content: render.Render(content, vars),
	}, nil
}

// campaignContent returns the subject and content to render, falling back to
// the linked template for whichever the campaign leaves empty. Preview and
// dispatch both resolve through here so what the admin sees is what gets sent.
func campaignContent(templates repository.TemplateRepositoryInterface, campaign *model.Campaign) (subject, content string, err error) {
	subject = campaign.Subject
	content = campaign.Content
	if campaign.EmailTemplateID == nil || (subject != "" && content != "") {
		return subject, content, nil
	}

	tmpl, err := templates.GetByID(*campaign.EmailTemplateID)
	if err != nil {
		return "", "", err
	}
	if tmpl != nil {
		if subject == "" {
			subject = tmpl.Subject
		}
		if content == "" {
			content = tmpl.Content
		}
	}
	return subject, content, nil
}

// Cancel moves a non-terminal campaign to cancelled. Already-enqueued jobs
// are not revoked; dispatch re-checks campaign status and no-ops.
func (s *CampaignService) Cancel(userID, campaignID int) error {
	campaign, err := s.getOwned(userID, campaignID)
	if err != nil {
		return err
	}
	ok, err := s.CampaignRepo.Cancel(campaignID)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.NewInvalidCampaignStatus(campaignID, campaign.Status, "cancelled")
	}
	return nil
}

func (s *CampaignService) ListCampaigns(userID, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListByUser(userID, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

func (s *CampaignService) GetCampaignDetails(userID, campaignID int) (*CampaignDetails, error) {
	campaign, err := s.getOwned(userID, campaignID)
	if err != nil {
		return nil, err
	}

	stats, err := s.RecipientRepo.CountByStatus(campaignID)
	if err != nil {
		return nil, err
	}

	return &CampaignDetails{
		Campaign:  campaign,
		OpenRate:  campaign.OpenRate(),
		ClickRate: campaign.ClickRate(),
		Stats:     stats,
	}, nil
}

func (s *CampaignService) ListRecipients(userID, campaignID, page, pageSize int) ([]model.CampaignRecipient, map[string]int, error) {
	if _, err := s.getOwned(userID, campaignID); err != nil {
		return nil, nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.RecipientRepo.ListByCampaign(campaignID, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}

	recipients := make([]model.CampaignRecipient, len(ptrs))
	for i, r := range ptrs {
		recipients[i] = *r
	}

	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": (total + pageSize - 1) / pageSize,
	}
	return recipients, pagination, nil
}
