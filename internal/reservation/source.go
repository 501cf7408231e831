package reservation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/staykit/staykit/internal/staykit"
)

// HTTPSource reads open reservations from the property management
// system's HTTP API.
type HTTPSource struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (s *HTTPSource) OpenReservations(ctx context.Context, asOf time.Time) ([]staykit.Reservation, error) {
	endpoint := strings.TrimSuffix(s.BaseURL, "/") + "/reservations/open?as_of=" + url.QueryEscape(asOf.Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch reservations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("reservation API returned %d", resp.StatusCode)
	}

	var reservations []staykit.Reservation
	if err := json.NewDecoder(resp.Body).Decode(&reservations); err != nil {
		return nil, fmt.Errorf("decode reservations: %w", err)
	}
	return reservations, nil
}

// MemorySource is a fixed in-memory reservation list, used in tests and
// when no property management system is configured.
type MemorySource struct {
	mu           sync.RWMutex
	reservations []staykit.Reservation
}

func NewMemorySource(reservations ...staykit.Reservation) *MemorySource {
	return &MemorySource{reservations: reservations}
}

func (s *MemorySource) OpenReservations(_ context.Context, _ time.Time) ([]staykit.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]staykit.Reservation, len(s.reservations))
	copy(out, s.reservations)
	return out, nil
}

// Set replaces the reservation list.
func (s *MemorySource) Set(reservations []staykit.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations = reservations
}
