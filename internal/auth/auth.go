package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"basileus/internal/campaign"
	"basileus/internal/data"

	"github.com/rs/zerolog/log"
)

// CookieName carries the player id between requests.
const CookieName = "player_id"

const maxNameLen = 32

var ErrNoPlayer = errors.New("auth: no player id on request")

// Players is the part of the campaign manager registration needs.
type Players interface {
	Register(ctx context.Context, name string) (data.Player, *campaign.Service, error)
	Player(ctx context.Context, id string) (*campaign.Service, error)
}

type Auth struct {
	players Players
}

func NewAuth(p Players) *Auth {
	return &Auth{players: p}
}

type registerRequest struct {
	Name string `json:"name"`
}

type loginRequest struct {
	PlayerID string `json:"playerId"`
}

type playerResponse struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Solidi   int    `json:"solidi"`
}

// RegisterHandler creates a player and sets the session cookie.
func (a *Auth) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxNameLen {
		http.Error(w, "invalid name", http.StatusBadRequest)
		return
	}

	p, _, err := a.players.Register(r.Context(), name)
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("Register failed")
		http.Error(w, "failed to create player", http.StatusInternalServerError)
		return
	}

	setCookie(w, p.ID)
	writeJSON(w, http.StatusCreated, playerResponse{PlayerID: p.ID, Name: p.Name, Solidi: p.Solidi})
}

// LoginHandler sets the cookie for an existing player id.
func (a *Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.PlayerID) == "" {
		http.Error(w, "invalid credentials", http.StatusBadRequest)
		return
	}

	s, err := a.players.Player(r.Context(), req.PlayerID)
	if errors.Is(err, data.ErrPlayerNotFound) {
		http.Error(w, "player not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	p, err := s.Profile(r.Context())
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	setCookie(w, p.ID)
	writeJSON(w, http.StatusOK, playerResponse{PlayerID: p.ID, Name: p.Name, Solidi: p.Solidi})
}

func setCookie(w http.ResponseWriter, playerID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    playerID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// PlayerID reads the player id from the cookie, falling back to the
// ?player= query parameter for websocket clients that cannot set cookies.
func PlayerID(r *http.Request) (string, error) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	if id := r.URL.Query().Get("player"); id != "" {
		return id, nil
	}
	return "", ErrNoPlayer
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
