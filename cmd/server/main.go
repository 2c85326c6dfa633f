package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"repairdesk/db"
	"repairdesk/db/migrations"
	"repairdesk/db/schema"
	"repairdesk/internal/config"
	"repairdesk/internal/handlers"
	"repairdesk/internal/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	dbConn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("cannot open database", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer dbConn.Close()

	if err := migrations.Run(dbConn); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := schema.Ensure(ctx, dbConn, log); err != nil {
		cancel()
		log.Fatal("schema check failed", zap.Error(err))
	}
	cancel()

	store := db.NewStorage(dbConn)
	h := handlers.NewHandler(store, log)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		r.Post("/login", h.LoginHandler)

		// заявки
		r.Get("/requests", h.ListRequestsHandler)
		r.Get("/requests/search", h.SearchRequestsHandler)
		r.Post("/requests", h.CreateRequestHandler)
		r.Get("/requests/{id}", h.GetRequestHandler)
		r.Put("/requests/{id}/assign", h.AssignMasterHandler)
		r.Put("/requests/{id}/status", h.UpdateStatusHandler)
		r.Get("/requests/{id}/history", h.RequestHistoryHandler)

		// комментарии
		r.Get("/comments", h.ListCommentsHandler)
		r.Get("/comments/request/{id}", h.RequestCommentsHandler)
		r.Post("/comments", h.AddCommentHandler)
		r.Get("/template_comments", h.TemplateCommentsHandler)

		// мастера и статистика
		r.Get("/masters", h.MastersHandler)
		r.Get("/stats", h.StatsHandler)
	})

	log.Info("starting server", zap.String("addr", cfg.HTTPAddr))
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
