package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"basileus/internal/army"
	"basileus/internal/auth"
	"basileus/internal/battle"
	"basileus/internal/campaign"
	"basileus/internal/catalog"
	"basileus/internal/combat"
	"basileus/internal/data"
	"basileus/internal/enemy"
	"basileus/internal/livecache"

	"github.com/rs/zerolog/log"
)

// BattleLookup serves cached battle state. livecache.Cache satisfies it.
type BattleLookup interface {
	GetBattle(ctx context.Context, battleID string) (livecache.Battle, bool, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, data.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, campaign.ErrBattleInProgress),
		errors.Is(err, campaign.ErrQuestCompleted),
		errors.Is(err, campaign.ErrNoBattle),
		errors.Is(err, army.ErrGridFull):
		return http.StatusConflict
	case errors.Is(err, campaign.ErrUnknownQuest),
		errors.Is(err, data.ErrPlayerNotFound),
		errors.Is(err, army.ErrUnitNotFound):
		return http.StatusNotFound
	case errors.Is(err, army.ErrUnknownType),
		errors.Is(err, army.ErrInvalidPosition),
		errors.Is(err, army.ErrEmptyCell),
		errors.Is(err, army.ErrNotMergeable),
		errors.Is(err, enemy.ErrInvalidPower),
		errors.Is(err, enemy.ErrPowerTooLarge),
		errors.Is(err, combat.ErrNoAttack),
		errors.Is(err, battle.ErrEmptySide):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

type playerHandler func(w http.ResponseWriter, r *http.Request, s *campaign.Service)

// withPlayer resolves the calling player before running h.
func withPlayer(m *campaign.Manager, h playerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := auth.PlayerID(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		s, err := m.Player(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h(w, r, s)
	}
}

type armyResponse struct {
	Army      army.State     `json:"army"`
	Solidi    int            `json:"solidi"`
	Resources map[string]int `json:"resources"`
	BattleID  string         `json:"battleId,omitempty"`
}

func NewArmyHandler(m *campaign.Manager) http.HandlerFunc {
	return withPlayer(m, func(w http.ResponseWriter, r *http.Request, s *campaign.Service) {
		p, err := s.Profile(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp := armyResponse{Army: s.Army(), Solidi: p.Solidi, Resources: p.Resources}
		resp.BattleID, _ = s.ActiveBattle()
		writeJSON(w, http.StatusOK, resp)
	})
}

type catalogResponse struct {
	Baseline string             `json:"baseline"`
	Units    []catalog.UnitType `json:"units"`
}

func NewCatalogHandler(cat *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, catalogResponse{Baseline: cat.Baseline().ID, Units: cat.Types()})
	}
}

type BuyRequest struct {
	Type string `json:"type"`
}

type buyResponse struct {
	Unit   army.Unit `json:"unit"`
	Solidi int       `json:"solidi"`
}

func NewBuyHandler(m *campaign.Manager) http.HandlerFunc {
	return withPlayer(m, func(w http.ResponseWriter, r *http.Request, s *campaign.Service) {
		var req BuyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad request"})
			return
		}

		u, err := s.BuyUnit(r.Context(), req.Type)
		if err != nil {
			writeError(w, r, err)
			return
		}
		p, err := s.Profile(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, buyResponse{Unit: u, Solidi: p.Solidi})
	})
}

type MoveRequest struct {
	From army.Position `json:"from"`
	To   army.Position `json:"to"`
}

func NewMoveHandler(m *campaign.Manager) http.HandlerFunc {
	return withPlayer(m, func(w http.ResponseWriter, r *http.Request, s *campaign.Service) {
		var req MoveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad request"})
			return
		}
		res, err := s.MoveUnit(r.Context(), req.From, req.To)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})
}

func NewRemoveHandler(m *campaign.Manager) http.HandlerFunc {
	return withPlayer(m, func(w http.ResponseWriter, r *http.Request, s *campaign.Service) {
		var req army.Position
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad request"})
			return
		}
		u, err := s.RemoveUnit(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	})
}

func NewQuestsHandler(m *campaign.Manager) http.HandlerFunc {
	return withPlayer(m, func(w http.ResponseWriter, r *http.Request, s *campaign.Service) {
		qs, err := s.Quests(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, qs)
	})
}

type BattleRequest struct {
	Power float64 `json:"power"`
}

type battleStarted struct {
	BattleID string `json:"battleId"`
}

// NewBattleHandler starts a skirmish. The outcome arrives over the
// websocket and, when a cache is configured, through GET /api/battle/{id}.
func NewBattleHandler(m *campaign.Manager) http.HandlerFunc {
	return withPlayer(m, func(w http.ResponseWriter, r *http.Request, s *campaign.Service) {
		var req BattleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad request"})
			return
		}
		id, err := s.StartBattle(r.Context(), req.Power, nil)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, battleStarted{BattleID: id})
	})
}

func NewQuestBattleHandler(m *campaign.Manager) http.HandlerFunc {
	return withPlayer(m, func(w http.ResponseWriter, r *http.Request, s *campaign.Service) {
		id, err := s.StartQuestBattle(r.Context(), r.PathValue("id"), nil)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, battleStarted{BattleID: id})
	})
}

func NewRetreatHandler(m *campaign.Manager) http.HandlerFunc {
	return withPlayer(m, func(w http.ResponseWriter, r *http.Request, s *campaign.Service) {
		if err := s.Retreat(); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

const (
	defaultHistory = 20
	maxHistory     = 100
)

// NewHistoryHandler lists the caller's finished battles, newest first.
// ?limit= is clamped to maxHistory.
func NewHistoryHandler(m *campaign.Manager) http.HandlerFunc {
	return withPlayer(m, func(w http.ResponseWriter, r *http.Request, s *campaign.Service) {
		limit := defaultHistory
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad limit"})
				return
			}
			limit = min(n, maxHistory)
		}
		hist, err := s.History(r.Context(), limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, hist)
	})
}

func NewBattleStatusHandler(battles BattleLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if battles == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "battle cache disabled"})
			return
		}
		b, ok, err := battles.GetBattle(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "battle not found"})
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}
