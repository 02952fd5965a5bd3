// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/sportapp/campaign-dispatcher/internal/db"
	"github.com/sportapp/campaign-dispatcher/internal/handler"
	"github.com/sportapp/campaign-dispatcher/internal/repository"
	"github.com/sportapp/campaign-dispatcher/internal/service"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	conn, err := db.Open()
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	recipientRepo := &repository.RecipientRepository{DB: conn}
	customerRepo := &repository.CustomerRepository{DB: conn}
	templateRepo := &repository.TemplateRepository{DB: conn}

	campaignService := &service.CampaignService{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
		CustomerRepo:  customerRepo,
		TemplateRepo:  templateRepo,
	}

	campaignHandler := &handler.CampaignHandler{Service: campaignService}
	trackingHandler := &handler.TrackingHandler{
		RecipientRepo: recipientRepo,
		CampaignRepo:  campaignRepo,
		CustomerRepo:  customerRepo,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public side-channel: open pixel and unsubscribe, no auth.
	r.Mount("/", trackingHandler.Routes())

	// Admin surface, owner-scoped.
	r.Mount("/admin/email-campaigns", campaignHandler.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("server running on :%s", port)
	log.Fatal(http.ListenAndServe(":"+port, r))
}
