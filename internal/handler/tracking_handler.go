// internal/handler/tracking_handler.go
package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sportapp/campaign-dispatcher/internal/model"
	"github.com/sportapp/campaign-dispatcher/internal/repository"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackingHandler serves the unauthenticated side-channel: the open pixel
// and unsubscribe-by-token. Both endpoints are idempotent and always answer
// 200 with generic content, never revealing whether a token exists.
type TrackingHandler struct {
	RecipientRepo repository.RecipientRepositoryInterface
	CampaignRepo  repository.CampaignRepositoryInterface
	CustomerRepo  repository.CustomerRepositoryInterface
}

func (h *TrackingHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/track/open/{token}", h.Open)
	r.Get("/unsubscribe/{token}", h.Unsubscribe)
	return r
}

// Open records an email open. The sent -> opened transition is conditional,
// so repeated pixel fetches increment the campaign counter exactly once.
func (h *TrackingHandler) Open(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	rec, err := h.RecipientRepo.GetByToken(token)
	if err != nil {
		log.Printf("[tracking] open lookup failed: %v", err)
		h.servePixel(w)
		return
	}
	if rec != nil && rec.Status == model.RecipientStatusSent {
		opened, err := h.RecipientRepo.MarkOpened(rec.ID, time.Now())
		if err != nil {
			log.Printf("[tracking] open transition failed campaign=%d recipient=%d: %v", rec.CampaignID, rec.ID, err)
		} else if opened {
			if err := h.CampaignRepo.IncrementOpenedCount(rec.CampaignID); err != nil {
				log.Printf("[tracking] opened_count increment failed campaign=%d: %v", rec.CampaignID, err)
			}
			log.Printf("[tracking] open campaign=%d recipient=%d", rec.CampaignID, rec.ID)
		}
	}

	h.servePixel(w)
}

// Unsubscribe flips the recipient identity's marketing consent off. Calling
// it again is a no-op that still renders the confirmation.
func (h *TrackingHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	rec, err := h.RecipientRepo.GetByToken(token)
	if err != nil {
		log.Printf("[tracking] unsubscribe lookup failed: %v", err)
		h.serveUnsubscribePage(w, "Invalid unsubscribe link.")
		return
	}
	if rec == nil {
		h.serveUnsubscribePage(w, "Invalid unsubscribe link.")
		return
	}

	if err := h.CustomerRepo.SetMarketingEmails(rec.RecipientID, false); err != nil {
		log.Printf("[tracking] unsubscribe failed recipient=%d: %v", rec.RecipientID, err)
		h.serveUnsubscribePage(w, "Something went wrong, please try again later.")
		return
	}

	log.Printf("[tracking] unsubscribe campaign=%d customer=%d", rec.CampaignID, rec.RecipientID)
	h.serveUnsubscribePage(w, "You have been successfully unsubscribed from marketing emails.")
}

func (h *TrackingHandler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

func (h *TrackingHandler) serveUnsubscribePage(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(`<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;text-align:center;padding:50px;">
		<h1>Email preferences</h1>
		<p>` + message + `</p>
	</body></html>`))
}
