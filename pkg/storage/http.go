package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/opentdf/contextvault/pkg/vault"
)

const blobsEndpoint = "/api/blobs"

// HTTPStore talks to the blob routes of a ctxvault server.
type HTTPStore struct {
	*http.Client
	Endpoint *url.URL
}

type HTTPStoreOptions struct {
	HttpClient *http.Client
	Endpoint   *url.URL
}

type putBlobResponse struct {
	BlobID string `json:"blobId"`
}

func NewHTTPStore(ops HTTPStoreOptions) (*HTTPStore, error) {
	if ops.HttpClient == nil {
		return nil, errors.New("http client cannot be nil. use golang oauth2 package to create an http client")
	}
	if ops.Endpoint == nil || ops.Endpoint.String() == "" {
		return nil, errors.New("blob store endpoint is required")
	}
	return &HTTPStore{Client: ops.HttpClient, Endpoint: ops.Endpoint}, nil
}

func (s *HTTPStore) Put(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.Endpoint.JoinPath(blobsEndpoint).String(), bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := s.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", statusError("put blob", resp)
	}
	var out putBlobResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Join(err, errors.New("unable to decode put blob response"))
	}
	return out.BlobID, nil
}

func (s *HTTPStore) Get(ctx context.Context, id string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint.JoinPath(blobsEndpoint, id).String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", vault.ErrStorageNotFound, id)
	default:
		return nil, statusError("get blob", resp)
	}
}

func statusError(op string, resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return err
	}
	return fmt.Errorf("%s failed with status code: %d body: %s", op, resp.StatusCode, string(body))
}
