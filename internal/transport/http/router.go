package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/golang/glog"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"quizbot-engine/internal/app"
	"quizbot-engine/internal/domain"
)

// NewRouter exposes the websocket gateway, health checks and leaderboards.
func NewRouter(service *app.Engine, hub *Hub) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", NewWSHandler(service, hub).ServeWS)
	r.HandleFunc("/quizzes/{quizID}/leaderboard", leaderboardHandler(service)).Methods(http.MethodGet)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(r)
}

func leaderboardHandler(service *app.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := leaderboardSize
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		view, err := service.Leaderboard(r.Context(), mux.Vars(r)["quizID"], limit)
		if errors.Is(err, domain.ErrQuizNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			glog.Errorf("leaderboard: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(view); err != nil {
			glog.V(2).Infof("write leaderboard: %v", err)
		}
	}
}
