package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/watchquest/watchquest/watchquest/database/models"
	"github.com/watchquest/watchquest/watchquest/logger"
	"github.com/watchquest/watchquest/watchquest/quests"
)

// Activity counter keys bumped by the video endpoints. Milestone quests
// reference these from configuration.
const (
	counterVideosWatched = "videos_watched"
	counterLinksClicked  = "links_clicked"
)

type questActionRequest struct {
	TelegramID int64  `json:"telegram_id"`
	QuestID    string `json:"quest_id"`

	// Optional profile passthrough from the mini app init data.
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	LanguageCode string `json:"language_code"`
	IsPremium    bool   `json:"is_premium"`
}

type videoActionRequest struct {
	TelegramID int64 `json:"telegram_id"`
	VideoID    int64 `json:"video_id"`
}

type questInfo struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
	Reward int64  `json:"reward"`
	Goal   int64  `json:"goal,omitempty"`
}

type questStatusInfo struct {
	QuestID string `json:"quest_id"`
	Status  string `json:"status"`
}

type verifyResponse struct {
	IsCompleted  bool   `json:"isCompleted"`
	Reward       int64  `json:"reward"`
	Balance      int64  `json:"balance,omitempty"`
	Unverifiable bool   `json:"unverifiable,omitempty"`
	Message      string `json:"message,omitempty"`
}

func (s *Server) handleQuestList(w http.ResponseWriter, r *http.Request) {
	defs := s.engine.List()
	infos := make([]questInfo, 0, len(defs))
	for _, def := range defs {
		infos = append(infos, questInfo{
			ID:     def.ID,
			Type:   string(def.Kind),
			Title:  def.Title,
			Link:   def.Link,
			Reward: def.RewardCents,
			Goal:   def.Goal,
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleQuestStatuses(w http.ResponseWriter, r *http.Request) {
	telegramID, err := strconv.ParseInt(r.URL.Query().Get("telegram_id"), 10, 64)
	if err != nil || telegramID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid telegram_id")
		return
	}

	user, err := s.users.GetByTelegramID(r.Context(), telegramID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	report, err := s.engine.Statuses(r.Context(), telegramID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	statuses := make([]questStatusInfo, 0, len(report.Quests))
	for _, def := range s.engine.List() {
		status, ok := report.Quests[def.ID]
		if !ok {
			continue
		}
		statuses = append(statuses, questStatusInfo{QuestID: def.ID, Status: string(status)})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"balance":  report.BalanceCents,
		"quests":   statuses,
		"counters": report.Counters,
	})
}

func (s *Server) handleQuestVisited(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuestAction(w, r)
	if !ok {
		return
	}

	if err := s.engine.MarkVisited(r.Context(), req.TelegramID, req.QuestID); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleQuestVerify(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuestAction(w, r)
	if !ok {
		return
	}

	result, err := s.engine.Verify(r.Context(), req.TelegramID, req.QuestID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponseFrom(result))
}

func (s *Server) handleQuestComplete(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuestAction(w, r)
	if !ok {
		return
	}

	result, err := s.engine.Claim(r.Context(), req.TelegramID, req.QuestID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponseFrom(result))
}

func (s *Server) handleVideoRandom(w http.ResponseWriter, r *http.Request) {
	video, err := s.videos.Random(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if video == nil {
		writeError(w, http.StatusNotFound, "no videos available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        video.ID,
		"title":     video.Title,
		"video_url": video.URL,
	})
}

func (s *Server) handleVideoWatched(w http.ResponseWriter, r *http.Request) {
	s.handleVideoActivity(w, r, counterVideosWatched, s.videos.RecordWatched)
}

func (s *Server) handleVideoClicked(w http.ResponseWriter, r *http.Request) {
	s.handleVideoActivity(w, r, counterLinksClicked, s.videos.RecordClicked)
}

func (s *Server) handleVideoActivity(w http.ResponseWriter, r *http.Request, counterKey string, record func(ctx context.Context, videoID int64) error) {
	var req videoActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TelegramID <= 0 || req.VideoID <= 0 {
		writeError(w, http.StatusBadRequest, "telegram_id and video_id are required")
		return
	}

	if err := s.ensureUser(r, questActionRequest{TelegramID: req.TelegramID}); err != nil {
		s.writeEngineError(w, err)
		return
	}

	if err := record(r.Context(), req.VideoID); err != nil {
		s.writeEngineError(w, err)
		return
	}

	activity, err := s.engine.RecordActivity(r.Context(), req.TelegramID, counterKey, 1)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	newlyReady := activity.NewlyReady
	if newlyReady == nil {
		newlyReady = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":                 activity.NewCount,
		"newly_ready_quest_ids": newlyReady,
	})
}

// handlePostback records an external offer conversion. The CPA network calls
// this with the ids it was handed in the tracking link.
func (s *Server) handlePostback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	telegramID, err := strconv.ParseInt(q.Get("telegram_id"), 10, 64)
	if err != nil || telegramID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid telegram_id")
		return
	}
	questID := q.Get("quest_id")

	var external bool
	for _, def := range s.engine.List() {
		if def.ID == questID && def.Kind == quests.KindExternal {
			external = true
			break
		}
	}
	if !external {
		writeError(w, http.StatusNotFound, "unknown offer")
		return
	}

	if err := s.ensureUser(r, questActionRequest{TelegramID: telegramID}); err != nil {
		s.writeEngineError(w, err)
		return
	}

	if _, err := s.engine.RecordActivity(r.Context(), telegramID, quests.OfferCounterKey(questID), 1); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) decodeQuestAction(w http.ResponseWriter, r *http.Request) (questActionRequest, bool) {
	var req questActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.TelegramID <= 0 || req.QuestID == "" {
		writeError(w, http.StatusBadRequest, "telegram_id and quest_id are required")
		return req, false
	}
	if err := s.ensureUser(r, req); err != nil {
		s.writeEngineError(w, err)
		return req, false
	}
	return req, true
}

func (s *Server) ensureUser(r *http.Request, req questActionRequest) error {
	return s.users.Ensure(r.Context(), &models.User{
		TelegramID:   req.TelegramID,
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		LanguageCode: req.LanguageCode,
		IsPremium:    req.IsPremium,
	})
}

func verifyResponseFrom(result quests.VerifyResult) verifyResponse {
	switch {
	case result.Unverifiable:
		return verifyResponse{Unverifiable: true}
	case result.Already:
		return verifyResponse{IsCompleted: true, Message: "already rewarded"}
	case result.Completed:
		return verifyResponse{
			IsCompleted: true,
			Reward:      result.RewardCents,
			Balance:     result.NewBalance,
		}
	default:
		return verifyResponse{}
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quests.ErrUnknownQuest):
		writeError(w, http.StatusNotFound, "unknown quest")
	case errors.Is(err, quests.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.LogError("Request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.LogError("Failed to encode response", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
