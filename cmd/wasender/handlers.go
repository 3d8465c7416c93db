package main

import (
	"context"
	"encoding/json"
	"net/http"

	"wasender/internal/constants"
	"wasender/internal/errors"
	"wasender/internal/importer"
	"wasender/internal/models"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"
)

const maxImportSize = constants.MaxImportFileSizeMB * constants.BytesPerMegabyte

func (s *Server) handleIdentityConnect() http.HandlerFunc {
	type request struct {
		PhoneNumber string `json:"phoneNumber"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}

		identity, err := s.identity.Connect(r.Context(), req.PhoneNumber)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusAccepted, identity)
	}
}

func (s *Server) handleIdentityConfirm() http.HandlerFunc {
	type request struct {
		PhoneNumber string `json:"phoneNumber"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}

		if err := s.identity.Confirm(req.PhoneNumber); err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, s.identity.Identity())
	}
}

func (s *Server) handleIdentityDisconnect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.identity.Disconnect()
		s.writeJSON(w, http.StatusOK, s.identity.Identity())
	}
}

func (s *Server) handleIdentityGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.identity.Identity())
	}
}

func (s *Server) handleCampaignCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft models.CampaignDraft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}

		campaign, err := s.store.Create(r.Context(), &draft)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusCreated, campaign)
	}
}

func (s *Server) handleCampaignGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		campaign, err := s.store.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}

		progress, err := s.store.Progress(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"campaign": campaign,
			"progress": progress,
		})
	}
}

func (s *Server) handleCampaignDispatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		if err := s.pipeline.StartAsync(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusAccepted, map[string]string{
			"campaignId": id,
			"status":     string(models.CampaignStatusSending),
		})
	}
}

func (s *Server) handleCampaignCancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		if err := s.pipeline.Cancel(id); err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusAccepted, map[string]string{"campaignId": id})
	}
}

// handleCampaignEvents streams progress entries over a websocket. The replay
// of persisted entries comes first, then live entries until the client
// disconnects.
func (s *Server) handleCampaignEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		ctx := r.Context()

		if _, err := s.store.Get(ctx, id); err != nil {
			s.writeError(w, err)
			return
		}

		// Subscribe before replay so no entry is lost in between
		events, cancel := s.store.Subscribe(id)
		defer cancel()

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.WithError(err).Warn("Websocket accept failed")
			return
		}
		defer conn.Close(websocket.StatusInternalError, "stream closed")

		history, err := s.store.Progress(ctx, id)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to load progress history")
			return
		}

		seen := 0
		for _, entry := range history {
			if err := writeEvent(ctx, conn, entry); err != nil {
				return
			}
			if entry.Seq > seen {
				seen = entry.Seq
			}
		}

		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return
			case entry, ok := <-events:
				if !ok {
					conn.Close(websocket.StatusNormalClosure, "")
					return
				}
				if entry.Seq != 0 && entry.Seq <= seen {
					continue
				}
				if err := writeEvent(ctx, conn, entry); err != nil {
					return
				}
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, entry models.ProgressEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func (s *Server) handleRecipientImport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxImportSize); err != nil {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid multipart upload"))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "missing recipient file"))
			return
		}
		defer file.Close()

		result, err := importer.Parse(header.Filename, file)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleAssistGenerate() http.HandlerFunc {
	type request struct {
		Topic string `json:"topic"`
		Tone  string `json:"tone"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}
		if req.Topic == "" {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "topic is required"))
			return
		}
		if req.Tone == "" {
			req.Tone = "friendly"
		}

		message, err := s.assist.GenerateMessage(r.Context(), req.Topic, req.Tone)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, map[string]string{"message": message})
	}
}

func (s *Server) handleAssistSpamScore() http.HandlerFunc {
	type request struct {
		Message string `json:"message"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}
		if req.Message == "" {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "message is required"))
			return
		}

		s.writeJSON(w, http.StatusOK, s.assist.AnalyzeSpamRisk(r.Context(), req.Message))
	}
}

func (s *Server) handlePoolStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.pool.Stats())
	}
}

func (s *Server) handlePoolProvision() http.HandlerFunc {
	type request struct {
		Count       int    `json:"count"`
		CountryCode string `json:"countryCode"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}

		numbers, err := s.pool.Provision(r.Context(), req.Count, req.CountryCode, models.NumberSourceGenerated)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusCreated, numbers)
	}
}
