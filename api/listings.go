package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/opentdf/contextvault/pkg/ledger"
)

type ledgerClient struct {
	ledger.Ledger
}

type issueGrantRequest struct {
	Holder string `json:"holder"`
	Quota  int    `json:"quota"`
}

func LoadListingRoutes(l ledger.Ledger) chi.Router {
	c := ledgerClient{l}
	r := chi.NewRouter()
	r.Route("/", func(r chi.Router) {
		r.Get("/{listingId}", c.getListing)
		r.Post("/{listingId}/grants", c.issueGrant)
	})
	return r
}

// getListing never returns the envelope; it is handed out with grants only.
func (c ledgerClient) getListing(w http.ResponseWriter, r *http.Request) {
	listing, err := c.ReadListing(r.Context(), chi.URLParam(r, "listingId"))
	if err != nil {
		writeError(w, "could not retrieve listing", err)
		return
	}
	writeJSON(w, http.StatusOK, listing.Public())
}

func (c ledgerClient) issueGrant(w http.ResponseWriter, r *http.Request) {
	var req issueGrantRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "could not decode grant request", http.StatusBadRequest)
		return
	}
	if req.Holder == "" {
		http.Error(w, "holder not provided", http.StatusBadRequest)
		return
	}
	grant, err := c.IssueGrant(r.Context(), chi.URLParam(r, "listingId"), req.Holder, req.Quota)
	if err != nil {
		writeError(w, "could not issue grant", err)
		return
	}
	writeJSON(w, http.StatusCreated, grant)
}
