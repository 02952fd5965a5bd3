// internal/handler/campaign_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/sportapp/campaign-dispatcher/internal/errors"
	"github.com/sportapp/campaign-dispatcher/internal/service"
)

// CampaignHandler exposes the admin campaign surface: CRUD-lite plus the
// send, preview, cancel and recipients actions.
type CampaignHandler struct {
	Service *service.CampaignService
}

func (h *CampaignHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequireAdminUser)
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/send", h.Send)
	r.Get("/{id}/preview", h.Preview)
	r.Post("/{id}/cancel", h.Cancel)
	r.Get("/{id}/recipients", h.Recipients)
	return r
}

func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name            string     `json:"name"`
		Subject         string     `json:"subject"`
		Content         string     `json:"content"`
		EmailTemplateID *int       `json:"email_template_id"`
		ScheduledAt     *time.Time `json:"scheduled_at"`
		CustomerGroups  []int      `json:"customer_group_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Subject == "" {
		http.Error(w, "name and subject are required", http.StatusUnprocessableEntity)
		return
	}

	campaign, err := h.Service.CreateCampaign(adminUserID(r), service.CreateCampaignInput{
		Name:            body.Name,
		Subject:         body.Subject,
		Content:         body.Content,
		EmailTemplateID: body.EmailTemplateID,
		ScheduledAt:     body.ScheduledAt,
		CustomerGroups:  body.CustomerGroups,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := h.Service.ListCampaigns(adminUserID(r), page, pageSize, status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	details, err := h.Service.GetCampaignDetails(adminUserID(r), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// Send triggers audience resolution and the draft -> sending transition. The
// batch driver picks up the materialized recipients on its next pass.
func (h *CampaignHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	result, err := h.Service.Send(adminUserID(r), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *CampaignHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	preview, err := h.Service.Preview(adminUserID(r), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (h *CampaignHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := h.Service.Cancel(adminUserID(r), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *CampaignHandler) Recipients(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	recipients, pagination, err := h.Service.ListRecipients(adminUserID(r), id, page, pageSize)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       recipients,
		"pagination": pagination,
	})
}

func urlID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeServiceError maps the service error taxonomy onto HTTP statuses with
// clear, actionable messages for the admin UI.
func writeServiceError(w http.ResponseWriter, err error) {
	var notFound *appErrors.ErrCampaignNotFound
	var notOwner *appErrors.ErrNotCampaignOwner
	var badStatus *appErrors.ErrInvalidCampaignStatus

	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &notOwner):
		// Existence is not revealed to non-owners.
		http.Error(w, "campaign not found", http.StatusNotFound)
	case errors.As(err, &badStatus):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
