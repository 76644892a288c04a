// Package handlers contains the HTTP handlers of the web server: the HTML
// search page, the JSON API and the shared-result pages.
package handlers

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"Similar-Music-Go/pkg/db"
	"Similar-Music-Go/pkg/music"
	"Similar-Music-Go/ui"
)

var log = logrus.WithField("component", "handlers")

// emptyQueryMessage is shown when the form is submitted without a query.
const emptyQueryMessage = "Please enter a song or album name."

// Recommender produces recommendations for a free-text query.
// *recommend.Service satisfies it.
type Recommender interface {
	FindSimilarMusic(ctx context.Context, query string) music.RecommendationResult
}

// Application holds the dependencies shared by the handlers.
type Application struct {
	Recommender Recommender
	// DB stores session history and shares. When nil, history is not kept
	// and sharing is disabled.
	DB *db.DB
	// SignKey signs the session cookie.
	SignKey []byte
	// Breakers are reported by Healthz.
	Breakers []Breaker

	once  sync.Once
	pages map[string]*template.Template
	err   error
}

// pageData is the model of every HTML page.
type pageData struct {
	Query    string
	Error    string
	Results  *music.RecommendationResult
	History  []music.HistoryEntry
	ShareURL string
}

func (app *Application) loadTemplates() error {
	app.once.Do(func() {
		app.pages = map[string]*template.Template{}
		for _, page := range []string{"index.html", "results.html"} {
			t, err := template.ParseFS(ui.Templates, "templates/base.html", "templates/"+page)
			if err != nil {
				app.err = err
				return
			}
			app.pages[page] = t
		}
	})
	return app.err
}

// render executes page into a buffer first so a template error never leaves
// a half-written response.
func (app *Application) render(w http.ResponseWriter, status int, page string, data pageData) {
	if err := app.loadTemplates(); err != nil {
		log.WithError(err).Error("parse templates")
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := app.pages[page].ExecuteTemplate(&buf, "base", data); err != nil {
		log.WithError(err).WithField("page", page).Error("render template")
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// Home serves the search form on GET and the results page on POST. A
// successful search with at least one recommendation is appended to the
// visitor's history, which both pages show in a sidebar.
func (app *Application) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		app.render(w, http.StatusOK, "index.html", pageData{History: app.history(r.Context(), app.existingSession(r))})
	case http.MethodPost:
		app.search(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (app *Application) search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	q := strings.TrimSpace(r.PostFormValue("query"))
	if q == "" {
		app.render(w, http.StatusBadRequest, "index.html", pageData{
			Error:   emptyQueryMessage,
			History: app.history(r.Context(), app.existingSession(r)),
		})
		return
	}

	res := app.Recommender.FindSimilarMusic(r.Context(), q)
	sid := app.session(w, r)
	if app.DB != nil {
		if _, err := music.Record(r.Context(), app.DB.History(sid), res); err != nil {
			log.WithError(err).Warn("record history")
		}
	}
	app.render(w, http.StatusOK, "results.html", pageData{
		Query:   q,
		Results: &res,
		History: app.history(r.Context(), sid),
	})
}

// history loads the entries of sid. Failures are logged and yield no
// history; the page is still rendered.
func (app *Application) history(ctx context.Context, sid string) []music.HistoryEntry {
	if app.DB == nil || sid == "" {
		return nil
	}
	h, err := app.DB.ListHistory(ctx, sid)
	if err != nil {
		log.WithError(err).Warn("load history")
		return nil
	}
	return h
}
