package ports

import (
	"context"
	"time"

	"github.com/staykit/staykit/internal/staykit"
)

// ReservationSource supplies the engine's view of open stays. The
// property management system owns the data; the engine only reads it.
type ReservationSource interface {
	OpenReservations(ctx context.Context, asOf time.Time) ([]staykit.Reservation, error)
}

// TemplateRegistry resolves named message templates.
type TemplateRegistry interface {
	// Render substitutes vars into the named template. Unresolved
	// placeholders are left literal.
	Render(templateID string, vars map[string]any) (string, error)
	Has(templateID string) bool
}

// DraftGenerator produces a candidate rule from a natural-language
// description. Output is always repaired and validated before persistence.
type DraftGenerator interface {
	GenerateDraft(ctx context.Context, description string) (*staykit.AutomationRule, error)
}
