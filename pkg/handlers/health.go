package handlers

import "net/http"

// Breaker reports the circuit state of one upstream provider.
// *upstream.Guard satisfies it.
type Breaker interface {
	Provider() string
	State() string
}

// Healthz reports the breaker state of every provider. The process is
// always able to answer, so the status code stays 200; "degraded" means at
// least one provider is currently being short-circuited.
func (app *Application) Healthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	providers := make(map[string]string, len(app.Breakers))
	for _, b := range app.Breakers {
		st := b.State()
		providers[b.Provider()] = st
		if st != "closed" {
			status = "degraded"
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": status, "providers": providers})
}
