package lobby

import (
	"net/http"
	"time"

	"basileus/internal/arena"
	"basileus/internal/auth"
	"basileus/internal/campaign"
	"basileus/internal/logger"
)

// NewRouter wires every HTTP and websocket route. battles may be nil when
// no live cache is configured.
func NewRouter(m *campaign.Manager, hub *arena.Hub, battles BattleLookup) http.Handler {
	a := auth.NewAuth(m)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/register", a.RegisterHandler)
	mux.HandleFunc("POST /api/login", a.LoginHandler)

	mux.HandleFunc("GET /api/catalog", NewCatalogHandler(m.Catalog()))
	mux.HandleFunc("GET /api/army", NewArmyHandler(m))
	mux.HandleFunc("POST /api/army/buy", NewBuyHandler(m))
	mux.HandleFunc("POST /api/army/move", NewMoveHandler(m))
	mux.HandleFunc("POST /api/army/remove", NewRemoveHandler(m))

	mux.HandleFunc("GET /api/quests", NewQuestsHandler(m))
	mux.HandleFunc("POST /api/quests/{id}/battle", NewQuestBattleHandler(m))
	mux.HandleFunc("POST /api/battle", NewBattleHandler(m))
	mux.HandleFunc("POST /api/battle/retreat", NewRetreatHandler(m))
	mux.HandleFunc("GET /api/battle/{id}", NewBattleStatusHandler(battles))
	mux.HandleFunc("GET /api/battles", NewHistoryHandler(m))

	mux.HandleFunc("GET /ws", arena.NewWebsocketHandler(hub, m))

	return withRequestLog(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the hijacker for websockets.
func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logger.WithRequestID(r.Context(), logger.NewRequestID())
		r = r.WithContext(ctx)

		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		l := logger.ForRequest(ctx)
		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("HTTP request")
	})
}
