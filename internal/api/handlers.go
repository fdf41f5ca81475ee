package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Danselem/dara-opsc/internal/footprint"
	"github.com/Danselem/dara-opsc/internal/geo"
	"github.com/Danselem/dara-opsc/internal/httputil"
	"github.com/Danselem/dara-opsc/internal/product"
	"github.com/Danselem/dara-opsc/internal/propagation"
	"github.com/Danselem/dara-opsc/internal/timeconv"
	"github.com/Danselem/dara-opsc/internal/tle"
)

// passRequest is a capture record plus an optional observer.
type passRequest struct {
	product.Record
	Observer *geo.Observer `json:"observer,omitempty" cbor:"observer,omitempty"`
}

func (s *Server) handlePass(w http.ResponseWriter, r *http.Request) {
	var req passRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	obs := s.opts.Observer
	if req.Observer != nil {
		if !req.Observer.Valid() {
			httputil.WriteError(w, http.StatusBadRequest, "observer out of range")
			return
		}
		obs = *req.Observer
	}

	el, err := req.ElementSet()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	recs, err := s.passes.Compute(r.Context(), el, obs, req.Series())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recs)
}

func (s *Server) handleFootprint(w http.ResponseWriter, r *http.Request) {
	var rec product.Record
	if err := s.decode(w, r, &rec); err != nil {
		s.writeError(w, r, err)
		return
	}

	// Same precondition order as the engine: samples, elements, projection.
	if len(rec.Timestamps) == 0 {
		s.writeError(w, r, timeconv.ErrEmptyTimestampSeries)
		return
	}
	el, err := rec.ElementSet()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	proj, err := rec.ProjectionConfig()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	m, err := s.footprint.Compute(el, rec.Series(), proj)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

// decode reads a JSON or CBOR body, chosen by Content-Type, into v.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	format, err := product.FormatFromContentType(r.Header.Get("Content-Type"))
	if err != nil {
		return err
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		return err
	}
	if err := product.Unmarshal(data, format, v); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// writeError maps engine and decoding errors to a status code.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		maxErr  *http.MaxBytesError
		decErr  *decodeError
		propErr *propagation.Error
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &maxErr):
		status = http.StatusRequestEntityTooLarge
		err = fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
	case errors.Is(err, product.ErrUnsupportedFormat):
		status = http.StatusUnsupportedMediaType
	case errors.As(err, &decErr):
		status = http.StatusBadRequest
	case errors.Is(err, tle.ErrMissingTLE),
		errors.Is(err, tle.ErrMalformedTLE),
		errors.Is(err, timeconv.ErrEmptyTimestampSeries),
		errors.Is(err, timeconv.ErrInvalidTimestamp),
		errors.Is(err, footprint.ErrInvalidProjection):
		status = http.StatusBadRequest
	case errors.As(err, &propErr):
		status = http.StatusUnprocessableEntity
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	httputil.WriteError(w, status, err.Error())
}
