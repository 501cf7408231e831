package reservation

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/staykit/staykit/internal/staykit"
)

func TestHTTPSourceOpenReservations(t *testing.T) {
	var gotPath, gotAuth, gotAsOf string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotAsOf = r.URL.Query().Get("as_of")
		io.WriteString(w, `[
			{"subject_id": "res-1", "arrival_date": "2024-06-10T00:00:00Z",
			 "departure_date": "2024-06-14T00:00:00Z",
			 "guest_variables": {"firstName": "Ana"}}
		]`)
	}))
	defer srv.Close()

	source := &HTTPSource{BaseURL: srv.URL, Token: "tok", Client: srv.Client()}
	asOf := time.Date(2024, 6, 7, 9, 0, 0, 0, time.UTC)

	reservations, err := source.OpenReservations(context.Background(), asOf)
	if err != nil {
		t.Fatalf("OpenReservations returned unexpected error: %v", err)
	}

	if gotPath != "/reservations/open" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotAsOf != asOf.Format(time.RFC3339) {
		t.Errorf("as_of = %q", gotAsOf)
	}

	if len(reservations) != 1 {
		t.Fatalf("reservations = %d, want 1", len(reservations))
	}
	res := reservations[0]
	if res.SubjectID != "res-1" || res.GuestVariables["firstName"] != "Ana" {
		t.Errorf("reservation = %+v", res)
	}
	if !res.ArrivalDate.Equal(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("arrival = %v", res.ArrivalDate)
	}
}

func TestHTTPSourceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	source := &HTTPSource{BaseURL: srv.URL, Client: srv.Client()}
	if _, err := source.OpenReservations(context.Background(), time.Now()); err == nil {
		t.Fatal("error = nil, want failure for 502")
	}
}

func TestMemorySourceSetReplacesList(t *testing.T) {
	source := NewMemorySource(staykit.Reservation{SubjectID: "res-1"})

	reservations, err := source.OpenReservations(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("OpenReservations returned unexpected error: %v", err)
	}
	if len(reservations) != 1 || reservations[0].SubjectID != "res-1" {
		t.Fatalf("reservations = %+v", reservations)
	}

	source.Set([]staykit.Reservation{{SubjectID: "res-2"}, {SubjectID: "res-3"}})
	reservations, _ = source.OpenReservations(context.Background(), time.Now())
	if len(reservations) != 2 || reservations[0].SubjectID != "res-2" {
		t.Errorf("reservations after Set = %+v", reservations)
	}
}
