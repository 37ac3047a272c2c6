package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/marcus/pinmap/internal/geo"
	"github.com/marcus/pinmap/internal/models"
	"github.com/marcus/pinmap/internal/serverdb"
)

// locationRequest is the body of POST and PUT. Coordinates is a pointer so a
// missing geometry can be told apart from a zero point.
type locationRequest struct {
	Name        string            `json:"name"`
	Category    models.Category   `json:"category"`
	Description string            `json:"description"`
	Address     string            `json:"address"`
	Coordinates *models.GeoPoint  `json:"coordinates"`
	Properties  map[string]string `json:"properties"`
}

func (req locationRequest) location() models.Location {
	return models.Location{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Address:     req.Address,
		Coordinates: models.NewGeoPoint(req.Coordinates.Coordinates[0], req.Coordinates.Coordinates[1]),
		Properties:  req.Properties,
	}
}

// decodeLocation reads and validates a request body. It writes the error
// response itself and returns false on failure.
func decodeLocation(w http.ResponseWriter, r *http.Request) (models.Location, bool) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return models.Location{}, false
		}
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return models.Location{}, false
	}
	if !geo.Valid(req.Coordinates) {
		writeError(w, http.StatusBadRequest, msgCoordinatesRequired)
		return models.Location{}, false
	}
	return req.location(), true
}

func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := s.store.ListLocations(r.Context())
	if err != nil {
		logFor(r.Context()).Error("list locations", "err", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeData(w, http.StatusOK, locs)
}

func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := s.store.GetLocation(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, r, "get location", err)
		return
	}
	writeData(w, http.StatusOK, loc)
}

func (s *Server) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeLocation(w, r)
	if !ok {
		return
	}
	loc, err := s.store.CreateLocation(r.Context(), in)
	if err != nil {
		s.writeStoreError(w, r, "create location", err)
		return
	}
	s.metrics.RecordWrite("create")
	logFor(r.Context()).Info("location created", "id", loc.ID)
	writeData(w, http.StatusCreated, loc)
}

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeLocation(w, r)
	if !ok {
		return
	}
	loc, err := s.store.UpdateLocation(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.writeStoreError(w, r, "update location", err)
		return
	}
	s.metrics.RecordWrite("update")
	writeData(w, http.StatusOK, loc)
}

func (s *Server) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteLocation(r.Context(), id); err != nil {
		s.writeStoreError(w, r, "delete location", err)
		return
	}
	s.metrics.RecordWrite("delete")
	logFor(r.Context()).Info("location deleted", "id", id)
	writeJSON(w, http.StatusOK, Envelope{Success: true})
}

// handleExportGeoJSON serves every location as a FeatureCollection.
func (s *Server) handleExportGeoJSON(w http.ResponseWriter, r *http.Request) {
	locs, err := s.store.ListLocations(r.Context())
	if err != nil {
		logFor(r.Context()).Error("export locations", "err", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	fc, err := geo.ToFeatureCollection(locs)
	if err != nil {
		logFor(r.Context()).Error("build feature collection", "err", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="locations.geojson"`)
	writeJSON(w, http.StatusOK, fc)
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, serverdb.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	logFor(r.Context()).Error(op, "err", err)
	writeError(w, http.StatusInternalServerError, msgInternal)
}
