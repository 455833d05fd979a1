package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/admin-session/internal/errors"
)

const maxErrorBody = 4 << 10

// Resource is one admin collection under /admin/{name}. Create and Update send C; the
// server answers with T.
type Resource[T any, C any] struct {
	httpClient *http.Client
	baseURL    string
	name       string
}

func newResource[T any, C any](httpClient *http.Client, baseURL, name string) *Resource[T, C] {
	return &Resource[T, C]{httpClient: httpClient, baseURL: baseURL, name: name}
}

func (r *Resource[T, C]) Name() string {
	return r.name
}

// List fetches one 1-based page.
func (r *Resource[T, C]) List(ctx context.Context, page int) (*Page[T], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))

	var out Page[T]
	if err := r.do(ctx, http.MethodGet, r.collectionURL()+"?"+q.Encode(), nil, &out); err != nil {
		return nil, errors.Wrapf(err, "[Resource.List] %s", r.name)
	}
	return &out, nil
}

func (r *Resource[T, C]) Create(ctx context.Context, item C) (*T, error) {
	var out T
	if err := r.do(ctx, http.MethodPost, r.collectionURL(), item, &out); err != nil {
		return nil, errors.Wrapf(err, "[Resource.Create] %s", r.name)
	}
	return &out, nil
}

func (r *Resource[T, C]) Update(ctx context.Context, id string, item C) (*T, error) {
	var out T
	if err := r.do(ctx, http.MethodPut, r.itemURL(id), item, &out); err != nil {
		return nil, errors.Wrapf(err, "[Resource.Update] %s %s", r.name, id)
	}
	return &out, nil
}

func (r *Resource[T, C]) Delete(ctx context.Context, id string) error {
	if err := r.do(ctx, http.MethodDelete, r.itemURL(id), nil, nil); err != nil {
		return errors.Wrapf(err, "[Resource.Delete] %s %s", r.name, id)
	}
	return nil
}

// ListByUniversity fetches the records of one university, e.g. its faculties.
func (r *Resource[T, C]) ListByUniversity(ctx context.Context, universityID string) (*Page[T], error) {
	u := fmt.Sprintf("%s/admin/universities/%s/%s", r.baseURL, url.PathEscape(universityID), r.name)

	var out Page[T]
	if err := r.do(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "[Resource.ListByUniversity] %s", r.name)
	}
	return &out, nil
}

func (r *Resource[T, C]) collectionURL() string {
	return r.baseURL + "/admin/" + r.name
}

func (r *Resource[T, C]) itemURL(id string) string {
	return r.collectionURL() + "/" + url.PathEscape(id)
}

func (r *Resource[T, C]) do(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "json.Marshal")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return errors.Wrap(err, "http.NewRequest")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}

// classifyTransportError keeps refresh failures recognisable and marks everything else as
// a network failure.
func classifyTransportError(err error) error {
	if apperrors.Is(err, apperrors.ErrRefreshFailed) || apperrors.Is(err, apperrors.ErrNetwork) {
		return err
	}
	return fmt.Errorf("%w: %w", apperrors.ErrNetwork, err)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusNotFound {
		return apperrors.Wrapf(apperrors.ErrNotFound, "status %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return apperrors.FromStatus(resp.StatusCode, strings.TrimSpace(string(body)))
}
