package venue

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Handler serves the venue over the game's HTTP protocol:
// GET /new-game?scenario&playerId and
// GET /decide-and-next?gameId&personIndex[&accept].
func (v *Venue) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /new-game", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		scenario, err := strconv.Atoi(q.Get("scenario"))
		if err != nil {
			http.Error(w, "scenario must be an integer", http.StatusBadRequest)
			return
		}
		resp, err := v.Start(r.Context(), scenario, q.Get("playerId"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, resp)
	})
	mux.HandleFunc("GET /decide-and-next", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		idx, err := strconv.Atoi(q.Get("personIndex"))
		if err != nil {
			http.Error(w, "personIndex must be an integer", http.StatusBadRequest)
			return
		}
		var accept *bool
		if raw, ok := q["accept"]; ok {
			b, err := strconv.ParseBool(raw[0])
			if err != nil {
				http.Error(w, "accept must be true or false", http.StatusBadRequest)
				return
			}
			accept = &b
		}
		resp, err := v.DecideAndNext(r.Context(), q.Get("gameId"), idx, accept)
		switch {
		case errors.Is(err, ErrUnknownGame):
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, resp)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("venue: writing response: %v", err)
	}
}
