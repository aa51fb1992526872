package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/opentdf/contextvault/pkg/ledger"
)

type consumeResponse struct {
	Remaining int `json:"remaining"`
}

func LoadGrantRoutes(l ledger.Ledger) chi.Router {
	c := ledgerClient{l}
	r := chi.NewRouter()
	r.Route("/", func(r chi.Router) {
		r.Get("/{grantId}", c.getGrant)
		r.Post("/{grantId}/consume", c.consumeGrant)
	})
	return r
}

func (c ledgerClient) getGrant(w http.ResponseWriter, r *http.Request) {
	grant, err := c.ReadGrant(r.Context(), chi.URLParam(r, "grantId"))
	if err != nil {
		writeError(w, "could not retrieve grant", err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

// consumeGrant spends one use. Holders call it after they decrypted and
// decoded the document, so failed attempts cost nothing.
func (c ledgerClient) consumeGrant(w http.ResponseWriter, r *http.Request) {
	remaining, err := c.ApplyQuotaDecrement(r.Context(), chi.URLParam(r, "grantId"))
	if err != nil {
		writeError(w, "could not consume grant", err)
		return
	}
	writeJSON(w, http.StatusOK, consumeResponse{Remaining: remaining})
}
