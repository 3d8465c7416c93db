package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"wasender/internal/errors"
	"wasender/internal/metrics"
	"wasender/internal/middleware"
	"wasender/internal/models"
	"wasender/internal/service"
	"wasender/pkg/assist"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	cfg      *models.Config
	store    *service.CampaignStore
	pipeline *service.DispatchPipeline
	identity *service.IdentityLinkManager
	pool     *service.NumberPool
	assist   assist.Gateway
	server   *http.Server
}

func NewServer(cfg *models.Config, store *service.CampaignStore, pipeline *service.DispatchPipeline, identity *service.IdentityLinkManager, pool *service.NumberPool, assistGateway assist.Gateway, logger *logrus.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		cfg:      cfg,
		store:    store,
		pipeline: pipeline,
		identity: identity,
		pool:     pool,
		assist:   assistGateway,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/identity/connect", s.handleIdentityConnect()).Methods(http.MethodPost)
	api.HandleFunc("/identity/confirm", s.handleIdentityConfirm()).Methods(http.MethodPost)
	api.HandleFunc("/identity/disconnect", s.handleIdentityDisconnect()).Methods(http.MethodPost)
	api.HandleFunc("/identity", s.handleIdentityGet()).Methods(http.MethodGet)

	api.HandleFunc("/campaigns", s.handleCampaignCreate()).Methods(http.MethodPost)
	api.HandleFunc("/campaigns/{id}", s.handleCampaignGet()).Methods(http.MethodGet)
	api.HandleFunc("/campaigns/{id}/dispatch", s.handleCampaignDispatch()).Methods(http.MethodPost)
	api.HandleFunc("/campaigns/{id}/cancel", s.handleCampaignCancel()).Methods(http.MethodPost)
	api.HandleFunc("/campaigns/{id}/events", s.handleCampaignEvents()).Methods(http.MethodGet)

	api.HandleFunc("/recipients/import", s.handleRecipientImport()).Methods(http.MethodPost)

	api.HandleFunc("/assist/generate", s.handleAssistGenerate()).Methods(http.MethodPost)
	api.HandleFunc("/assist/spam-score", s.handleAssistSpamScore()).Methods(http.MethodPost)

	api.HandleFunc("/pool", s.handlePoolStats()).Methods(http.MethodGet)
	api.HandleFunc("/pool/provision", s.handlePoolProvision()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Warn("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)

	s.writeJSON(w, httpStatusFor(code), map[string]string{
		"error": errors.GetUserMessage(err),
		"code":  string(code),
	})
}

func httpStatusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidNumberFormat, errors.ErrCodeIncompleteCampaign, errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeIdentityNotLinked:
		return http.StatusForbidden
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeIllegalStateTransition, errors.ErrCodeDispatchCancelled:
		return http.StatusConflict
	case errors.ErrCodePoolExhausted:
		return http.StatusServiceUnavailable
	case errors.ErrCodeAssistAPI, errors.ErrCodeDeliveryAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
