package engine

import (
	"time"

	"github.com/staykit/staykit/internal/staykit"
)

// BuildContext assembles the transient per-attempt template context:
// subject variables from the reservation, trigger payload entries, and
// (as steps complete) actions.<stepID>.output.<field> keys. The map is
// flat; dotted placeholder paths index it directly.
func BuildContext(res *staykit.Reservation, payload map[string]any) map[string]any {
	ctx := make(map[string]any)
	if res != nil {
		for k, v := range res.GuestVariables {
			ctx[k] = v
		}
		ctx["subjectId"] = res.SubjectID
		ctx["arrivalDate"] = res.ArrivalDate.Format(time.DateOnly)
		ctx["departureDate"] = res.DepartureDate.Format(time.DateOnly)
	}
	for k, v := range payload {
		ctx[k] = v
	}
	return ctx
}

// MergeStepOutput exposes a completed step's output to later steps under
// actions.<stepID>.output.<field>.
func MergeStepOutput(ctx map[string]any, stepID string, output map[string]any) {
	for k, v := range output {
		ctx["actions."+stepID+".output."+k] = v
	}
}
