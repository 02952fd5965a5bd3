package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	appErrors "github.com/sportapp/campaign-dispatcher/internal/errors"
	"github.com/sportapp/campaign-dispatcher/internal/mailer"
	"github.com/sportapp/campaign-dispatcher/internal/model"
	"github.com/sportapp/campaign-dispatcher/internal/queue"
)

// In-memory fakes mirroring the repositories' conditional-update semantics,
// shared by the service tests.

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[int]*model.Campaign
	groups    map[int][]int
	nextID    int
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{
		campaigns: map[int]*model.Campaign{},
		groups:    map[int][]int{},
		nextID:    1,
	}
}

func (f *fakeCampaignRepo) put(c *model.Campaign) *model.Campaign {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == 0 {
		c.ID = f.nextID
		f.nextID++
	} else if c.ID >= f.nextID {
		f.nextID = c.ID + 1
	}
	f.campaigns[c.ID] = c
	return c
}

func (f *fakeCampaignRepo) Create(c *model.Campaign) error {
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	c.CreatedAt = time.Now()
	f.put(c)
	return nil
}

func (f *fakeCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaignRepo) ListByUser(userID, offset, limit int, status string) ([]*model.Campaign, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range f.campaigns {
		if c.UserID == userID && (status == "" || c.Status == status) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (f *fakeCampaignRepo) ListSendingDue(now time.Time) ([]*model.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range f.campaigns {
		if c.Status != model.CampaignStatusSending {
			continue
		}
		if c.ScheduledAt != nil && c.ScheduledAt.After(now) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCampaignRepo) BeginSending(campaignID, totalRecipients int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[campaignID]
	if !ok || c.Status != model.CampaignStatusDraft {
		return false, nil
	}
	c.Status = model.CampaignStatusSending
	c.TotalRecipients = totalRecipients
	return true, nil
}

func (f *fakeCampaignRepo) MarkSent(campaignID int, sentAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[campaignID]
	if !ok || c.Status != model.CampaignStatusSending {
		return false, nil
	}
	c.Status = model.CampaignStatusSent
	c.SentAt = &sentAt
	return true, nil
}

func (f *fakeCampaignRepo) Cancel(campaignID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[campaignID]
	if !ok || c.Status == model.CampaignStatusSent || c.Status == model.CampaignStatusCancelled {
		return false, nil
	}
	c.Status = model.CampaignStatusCancelled
	return true, nil
}

func (f *fakeCampaignRepo) IncrementSentCount(campaignID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.campaigns[campaignID]; ok {
		c.SentCount++
	}
	return nil
}

func (f *fakeCampaignRepo) IncrementOpenedCount(campaignID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.campaigns[campaignID]; ok {
		c.OpenedCount++
	}
	return nil
}

func (f *fakeCampaignRepo) GroupIDs(campaignID int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int{}, f.groups[campaignID]...), nil
}

func (f *fakeCampaignRepo) AttachGroups(campaignID int, groupIDs []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups[campaignID] = append(f.groups[campaignID], groupIDs...)
	return nil
}

func (f *fakeCampaignRepo) PurgeTerminalOlderThan(cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for id, c := range f.campaigns {
		if c.Status != model.CampaignStatusSent && c.Status != model.CampaignStatusCancelled {
			continue
		}
		if !c.CreatedAt.Before(cutoff) {
			continue
		}
		delete(f.campaigns, id)
		delete(f.groups, id)
		removed++
	}
	return removed, nil
}

type fakeRecipientRepo struct {
	mu         sync.Mutex
	recipients map[int]*model.CampaignRecipient
	nextID     int
}

func newFakeRecipientRepo() *fakeRecipientRepo {
	return &fakeRecipientRepo{recipients: map[int]*model.CampaignRecipient{}, nextID: 1}
}

func (f *fakeRecipientRepo) put(rec *model.CampaignRecipient) *model.CampaignRecipient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.ID == 0 {
		rec.ID = f.nextID
		f.nextID++
	} else if rec.ID >= f.nextID {
		f.nextID = rec.ID + 1
	}
	f.recipients[rec.ID] = rec
	return rec
}

func (f *fakeRecipientRepo) CreateIfAbsent(campaignID, recipientID int, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.recipients {
		if rec.CampaignID == campaignID && rec.RecipientID == recipientID {
			return false, nil
		}
	}
	rec := &model.CampaignRecipient{
		ID:            f.nextID,
		CampaignID:    campaignID,
		RecipientID:   recipientID,
		Status:        model.RecipientStatusPending,
		TrackingToken: token,
		CreatedAt:     time.Now(),
	}
	f.nextID++
	f.recipients[rec.ID] = rec
	return true, nil
}

func (f *fakeRecipientRepo) GetByID(id int) (*model.CampaignRecipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recipients[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRecipientRepo) GetByToken(token string) (*model.CampaignRecipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.recipients {
		if rec.TrackingToken == token {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRecipientRepo) ListPending(campaignID, limit int) ([]*model.CampaignRecipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.CampaignRecipient{}
	for _, rec := range f.recipients {
		if rec.CampaignID == campaignID && rec.Status == model.RecipientStatusPending {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRecipientRepo) ListByCampaign(campaignID, offset, limit int) ([]*model.CampaignRecipient, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.CampaignRecipient{}
	for _, rec := range f.recipients {
		if rec.CampaignID == campaignID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (f *fakeRecipientRepo) CountByStatus(campaignID int) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	for _, rec := range f.recipients {
		if rec.CampaignID == campaignID {
			counts[rec.Status]++
		}
	}
	return counts, nil
}

func (f *fakeRecipientRepo) cas(id int, from []string, apply func(*model.CampaignRecipient)) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recipients[id]
	if !ok {
		return false, nil
	}
	matched := false
	for _, s := range from {
		if rec.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	apply(rec)
	return true, nil
}

func (f *fakeRecipientRepo) Claim(id int) (bool, error) {
	return f.cas(id, []string{model.RecipientStatusPending}, func(rec *model.CampaignRecipient) {
		rec.Status = model.RecipientStatusSending
	})
}

func (f *fakeRecipientRepo) MarkSent(id int, sentAt time.Time) (bool, error) {
	return f.cas(id, []string{model.RecipientStatusSending}, func(rec *model.CampaignRecipient) {
		rec.Status = model.RecipientStatusSent
		rec.SentAt = &sentAt
		rec.ErrorMessage = ""
	})
}

func (f *fakeRecipientRepo) MarkOpened(id int, openedAt time.Time) (bool, error) {
	return f.cas(id, []string{model.RecipientStatusSent}, func(rec *model.CampaignRecipient) {
		rec.Status = model.RecipientStatusOpened
		rec.OpenedAt = &openedAt
	})
}

func (f *fakeRecipientRepo) ReleaseForRetry(id int, errorMessage string) (bool, error) {
	return f.cas(id, []string{model.RecipientStatusSending}, func(rec *model.CampaignRecipient) {
		rec.Status = model.RecipientStatusPending
		rec.ErrorMessage = errorMessage
		rec.RetryCount++
	})
}

func (f *fakeRecipientRepo) MarkFailed(id int, errorMessage string) (bool, error) {
	return f.cas(id, []string{model.RecipientStatusPending, model.RecipientStatusSending}, func(rec *model.CampaignRecipient) {
		rec.Status = model.RecipientStatusFailed
		rec.ErrorMessage = errorMessage
	})
}

type fakeCustomerRepo struct {
	mu        sync.Mutex
	customers map[int]model.Customer
	// membership: group id -> customer ids
	members map[int][]int
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: map[int]model.Customer{}, members: map[int][]int{}}
}

func (f *fakeCustomerRepo) GetByID(id int) (*model.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeCustomerRepo) ListConsentingGroupMembers(groupIDs []int) ([]model.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[int]bool{}
	out := []model.Customer{}
	for _, gid := range groupIDs {
		for _, cid := range f.members[gid] {
			if seen[cid] {
				continue
			}
			seen[cid] = true
			c, ok := f.customers[cid]
			if !ok || !c.MarketingEmails || c.IsAdmin {
				continue
			}
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCustomerRepo) SetMarketingEmails(customerID int, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[customerID]
	if ok {
		c.MarketingEmails = enabled
		f.customers[customerID] = c
	}
	return nil
}

type fakeSettingRepo struct {
	settings map[int]*model.EmailSetting
}

func (f *fakeSettingRepo) GetActiveByUserID(userID int) (*model.EmailSetting, error) {
	s, ok := f.settings[userID]
	if !ok {
		return nil, appErrors.NewNoActiveEmailSettings(userID)
	}
	return s, nil
}

type fakeTemplateRepo struct {
	templates map[int]*model.EmailTemplate
}

func (f *fakeTemplateRepo) GetByID(id int) (*model.EmailTemplate, error) {
	if f.templates == nil {
		return nil, nil
	}
	return f.templates[id], nil
}

// fakeSender records sends; the next `failures` deliveries return an error.
type fakeSender struct {
	mu       sync.Mutex
	sent     []*mailer.Message
	failures int
}

func (f *fakeSender) Send(ctx context.Context, setting *model.EmailSetting, msg *mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return fmt.Errorf("550 mailbox unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakePublisher records enqueued jobs instead of talking to RabbitMQ.
type fakePublisher struct {
	mu        sync.Mutex
	immediate []queue.DispatchJob
	delayed   []delayedJob
}

type delayedJob struct {
	job   queue.DispatchJob
	delay time.Duration
}

func (f *fakePublisher) PublishDispatch(job queue.DispatchJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.immediate = append(f.immediate, job)
	return nil
}

func (f *fakePublisher) PublishDispatchDelayed(job queue.DispatchJob, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delayed = append(f.delayed, delayedJob{job: job, delay: delay})
	return nil
}

func (f *fakePublisher) drainImmediate() []queue.DispatchJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.immediate
	f.immediate = nil
	return out
}
