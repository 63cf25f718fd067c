package documents

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/osk4114/GestionDocumentaria-sub001/pkg/logging"
)

func newTestRouter(svc *Service) http.Handler {
	h := NewHandler(logging.Discard(), svc)
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterPublic(r)
		h.Register(r)
	})
	return r
}

func TestIntakeEndpoint(t *testing.T) {
	svc, _, _ := newTestService()
	router := newTestRouter(svc)

	body := `{"subject":"Reclamo","senderName":"Jose Perez","areaId":5}`
	req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var doc Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("response is not a document: %v", err)
	}
	if doc.TrackingCode == "" || doc.Status != StatusReceived {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestIntakeEndpointValidation(t *testing.T) {
	svc, _, _ := newTestService()
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(`{"subject":"x"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTrackEndpointHidesInternalFields(t *testing.T) {
	svc, _, _ := newTestService()
	router := newTestRouter(svc)
	doc := seedDocument(t, svc, 5)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/track/"+doc.TrackingCode, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if out["trackingCode"] != doc.TrackingCode {
		t.Errorf("trackingCode = %v", out["trackingCode"])
	}
	if _, leaked := out["id"]; leaked {
		t.Error("public tracking must not expose the internal document id")
	}
}

func TestDeriveEndpointConflict(t *testing.T) {
	svc, _, _ := newTestService()
	router := newTestRouter(svc)
	doc := seedDocument(t, svc, 5)

	req := httptest.NewRequest(http.MethodPost, "/api/documents/"+doc.ID+"/derive",
		strings.NewReader(`{"toAreaId":5}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("deriving to the same area should 409, got %d", rec.Code)
	}
}

func TestGetEndpointNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/no-such-id", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
