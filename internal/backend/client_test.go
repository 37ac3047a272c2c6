package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marcus/pinmap/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", time.Second)
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path: got %s, want /health", r.URL.Path)
		}
		w.Write([]byte(`{"status":"ok"}`))
	})
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestHealth_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	err := c.Health(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("Health: got %v, want APIError 503", err)
	}
}

func TestHealth_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second)
	if err := c.Health(context.Background()); !errors.Is(err, ErrUnreachable) {
		t.Fatalf("Health: got %v, want ErrUnreachable", err)
	}
}

func TestListLocations(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/locations" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"success":true,"data":[
			{"id":"a","name":"Monas","category":"poi","coordinates":{"type":"Point","coordinates":[106.8275,-6.1754]}},
			{"id":"b","name":"Ancol","category":"other","coordinates":{"type":"Point","coordinates":[106.84,-6.12]}}
		]}`))
	})

	locs, err := c.ListLocations(context.Background())
	if err != nil {
		t.Fatalf("ListLocations: %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("got %d locations, want 2", len(locs))
	}
	if locs[0].ID != "a" || locs[0].Coordinates.Lng() != 106.8275 {
		t.Errorf("first: got %+v", locs[0])
	}
}

func TestListLocations_EnvelopeFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"db down"}`))
	})
	if _, err := c.ListLocations(context.Background()); !errors.Is(err, ErrRejected) {
		t.Fatalf("got %v, want ErrRejected", err)
	}
}

func TestCreateLocation_SendsBodyAndReturnsServerID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type: got %q", ct)
		}
		raw, _ := io.ReadAll(r.Body)
		var body map[string]json.RawMessage
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if _, ok := body["id"]; ok {
			t.Error("body must not carry the local id")
		}
		if string(body["coordinates"]) != `{"type":"Point","coordinates":[106.8275,-6.1754]}` {
			t.Errorf("coordinates: got %s", body["coordinates"])
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true,"data":{"id":"srv-1","name":"Monas"}}`))
	})

	loc, err := c.CreateLocation(context.Background(), LocationBody{
		Name:        "Monas",
		Coordinates: models.NewGeoPoint(106.8275, -6.1754),
	})
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	if loc.ID != "srv-1" {
		t.Errorf("ID: got %q, want srv-1", loc.ID)
	}
}

func TestCreateLocation_CoordinatesRequired(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":"Coordinates are required"}`))
	})

	_, err := c.CreateLocation(context.Background(), LocationBody{Name: "x"})
	if !errors.Is(err, ErrCoordinatesRequired) {
		t.Fatalf("got %v, want ErrCoordinatesRequired", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("400 must not match ErrNotFound")
	}
}

func TestUpdateLocation_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/locations/loc%2F1" && r.URL.RawPath != "/api/locations/loc%2F1" {
			t.Errorf("path not escaped: %s", r.URL.RawPath)
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"error":"Location not found"}`))
	})

	_, err := c.UpdateLocation(context.Background(), "loc/1", LocationBody{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDeleteLocation_NoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method: got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if err := c.DeleteLocation(context.Background(), "abc"); err != nil {
		t.Fatalf("DeleteLocation: %v", err)
	}
}

func TestAPIError_PlainTextBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Coordinates are required", http.StatusUnprocessableEntity)
	})
	_, err := c.CreateLocation(context.Background(), LocationBody{})
	if !errors.Is(err, ErrCoordinatesRequired) {
		t.Fatalf("plain text body should still match, got %v", err)
	}
}
