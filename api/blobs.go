package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/opentdf/contextvault/pkg/storage"
)

// MaxBlobSize bounds a single PUT /api/blobs body.
const MaxBlobSize = 64 << 20

type blobClient struct {
	storage.Store
}

type putBlobResponse struct {
	BlobID string `json:"blobId"`
}

func LoadBlobRoutes(store storage.Store) chi.Router {
	b := blobClient{store}
	r := chi.NewRouter()
	r.Route("/", func(r chi.Router) {
		r.Put("/", b.putBlob)
		r.Get("/{blobId}", b.getBlob)
	})
	return r
}

func (b blobClient) putBlob(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBlobSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "blob too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "could not read blob", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "empty blob", http.StatusBadRequest)
		return
	}
	id, err := b.Put(r.Context(), data)
	if err != nil {
		writeError(w, "could not store blob", err)
		return
	}
	writeJSON(w, http.StatusCreated, putBlobResponse{BlobID: id})
}

func (b blobClient) getBlob(w http.ResponseWriter, r *http.Request) {
	data, err := b.Get(r.Context(), chi.URLParam(r, "blobId"))
	if err != nil {
		writeError(w, "could not retrieve blob", err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
