package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"Similar-Music-Go/pkg/db"
	"Similar-Music-Go/pkg/music"
)

// RecommendationsJSON answers GET /api/recommendations?q=... with the
// RecommendationResult of the query. An empty result is a normal 200
// response.
func (app *Application) RecommendationsJSON(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondJSONError(w, http.StatusBadRequest, emptyQueryMessage)
		return
	}
	respondJSON(w, http.StatusOK, app.Recommender.FindSimilarMusic(r.Context(), q))
}

// HistoryJSON returns the caller's session history on GET and clears it on
// DELETE. Visitors without a session get an empty list.
func (app *Application) HistoryJSON(w http.ResponseWriter, r *http.Request) {
	sid := app.existingSession(r)
	switch r.Method {
	case http.MethodGet:
		h := app.history(r.Context(), sid)
		if h == nil {
			h = []music.HistoryEntry{}
		}
		respondJSON(w, http.StatusOK, h)
	case http.MethodDelete:
		if app.DB != nil && sid != "" {
			if err := app.DB.ClearHistory(r.Context(), sid); err != nil {
				log.WithError(err).Error("clear history")
				respondJSONError(w, http.StatusInternalServerError, "failed to clear history")
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		respondJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// CreateShareJSON runs the query in the request body and stores the result
// under a short ID. The response contains the ID and the full share URL.
// Queries without recommendations are not stored.
func (app *Application) CreateShareJSON(w http.ResponseWriter, r *http.Request) {
	if app.DB == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "sharing is disabled")
		return
	}
	var req struct {
		Query string `json:"query"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := strings.TrimSpace(req.Query)
	if q == "" {
		respondJSONError(w, http.StatusBadRequest, emptyQueryMessage)
		return
	}
	res := app.Recommender.FindSimilarMusic(r.Context(), q)
	if len(res.Similar) == 0 {
		respondJSONError(w, http.StatusNotFound, "no similar music found")
		return
	}
	id, err := app.DB.CreateShare(r.Context(), q, res)
	if err != nil {
		log.WithError(err).Error("store share")
		respondJSONError(w, http.StatusInternalServerError, "failed to store share")
		return
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"id":  id,
		"url": fmt.Sprintf("%s://%s/share/%s", scheme, r.Host, id),
	})
}

// Share renders a stored result. The ID is the {id} path segment of
// /share/{id}; unknown IDs yield 404.
func (app *Application) Share(w http.ResponseWriter, r *http.Request) {
	if app.DB == nil {
		http.NotFound(w, r)
		return
	}
	id := r.PathValue("id")
	s, err := app.DB.GetShare(r.Context(), id)
	if err != nil {
		if db.IsNotFound(err) {
			http.NotFound(w, r)
		} else {
			log.WithError(err).WithField("share", id).Error("load share")
			http.Error(w, "failed to load share", http.StatusInternalServerError)
		}
		return
	}
	app.render(w, http.StatusOK, "results.html", pageData{
		Query:    s.Query,
		Results:  &s.Result,
		History:  app.history(r.Context(), app.existingSession(r)),
		ShareURL: r.URL.Path,
	})
}
