package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/staykit/staykit/internal/repository"
	"github.com/staykit/staykit/internal/staykit"
	"github.com/staykit/staykit/internal/staykit/ports"
)

// BucketGranularity controls how time-based occurrences are bucketed for
// idempotency. Day granularity means an edited time_of_day does not
// re-fire the rule for the same reservation the same day; minute
// granularity does.
type BucketGranularity string

const (
	BucketDay    BucketGranularity = "day"
	BucketMinute BucketGranularity = "minute"
)

// EvaluatorConfig carries the time evaluator's tuning knobs.
type EvaluatorConfig struct {
	// Lookback bounds how stale a missed target instant may be and still
	// fire after downtime.
	Lookback time.Duration
	Bucket   BucketGranularity
	// MaxConcurrent bounds concurrent chain executions per sweep.
	MaxConcurrent int
}

// TimeEvaluator scans reservations on a minute tick and fires every
// time-based rule whose target instant has passed, is within the
// lookback window, and has no ledger claim yet. Missed ticks recover for
// free: the next sweep sees the same unclaimed instants.
type TimeEvaluator struct {
	cron         *cron.Cron
	rules        repository.RuleRepository
	reservations ports.ReservationSource
	ledger       repository.Ledger
	runner       *Runner
	loc          *time.Location
	cfg          EvaluatorConfig
}

func NewTimeEvaluator(rules repository.RuleRepository, reservations ports.ReservationSource, ledger repository.Ledger, runner *Runner, loc *time.Location, cfg EvaluatorConfig) *TimeEvaluator {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 24 * time.Hour
	}
	if cfg.Bucket == "" {
		cfg.Bucket = BucketDay
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if loc == nil {
		loc = time.UTC
	}
	return &TimeEvaluator{
		cron:         cron.New(),
		rules:        rules,
		reservations: reservations,
		ledger:       ledger,
		runner:       runner,
		loc:          loc,
		cfg:          cfg,
	}
}

// Start begins the minute tick.
func (e *TimeEvaluator) Start() error {
	_, err := e.cron.AddFunc("* * * * *", func() {
		if err := e.Sweep(context.Background(), time.Now()); err != nil {
			slog.Error("evaluator: sweep failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("register evaluator tick: %w", err)
	}
	e.cron.Start()
	slog.Info("evaluator: started", "lookback", e.cfg.Lookback, "bucket", e.cfg.Bucket)
	return nil
}

// Stop gracefully stops the tick, waiting for a running sweep.
func (e *TimeEvaluator) Stop() {
	ctx := e.cron.Stop()
	<-ctx.Done()
	slog.Info("evaluator: stopped")
}

// Sweep evaluates all enabled time-based rules against all open
// reservations as of now. It is safe to call concurrently with itself
// and with event handling: the ledger claim arbitrates duplicates.
func (e *TimeEvaluator) Sweep(ctx context.Context, now time.Time) error {
	rules, err := e.rules.ListEnabled(ctx, staykit.TriggerTimeBased)
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}

	reservations, err := e.reservations.OpenReservations(ctx, now)
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrent)

	for i := range reservations {
		res := reservations[i]
		g.Go(func() error {
			for _, rule := range rules {
				e.evaluate(gctx, rule, res, now)
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *TimeEvaluator) evaluate(ctx context.Context, rule *staykit.AutomationRule, res staykit.Reservation, now time.Time) {
	target, err := TargetInstant(rule.Trigger.Time, res, e.loc)
	if err != nil {
		slog.Warn("evaluator: bad time trigger", "rule", rule.ID, "err", err)
		return
	}
	if target.After(now) {
		return
	}
	if now.Sub(target) > e.cfg.Lookback {
		// Too stale to fire; avoids a retroactive flood after downtime.
		return
	}

	occ := staykit.TriggerOccurrence{
		RuleID:    rule.ID,
		SubjectID: res.SubjectID,
		Bucket:    BucketFor(target, e.cfg.Bucket, e.loc),
	}

	claimed, err := e.ledger.TryClaim(ctx, occ)
	if err != nil {
		slog.Warn("evaluator: claim failed", "occurrence", occ.Key(), "err", err)
		return
	}
	if !claimed {
		return
	}

	slog.Info("evaluator: rule fired",
		"rule", rule.ID, "subject", res.SubjectID, "target", target)
	e.runner.Fire(ctx, rule, occ, &res, nil, 1)
}

// TargetInstant computes when a time trigger fires for a reservation:
// the anchor date offset by OffsetDays, at TimeOfDay in the property
// timezone.
func TargetInstant(t *staykit.TimeTrigger, res staykit.Reservation, loc *time.Location) (time.Time, error) {
	if t == nil {
		return time.Time{}, fmt.Errorf("nil time trigger")
	}
	hour, minute, err := parseTimeOfDay(t.TimeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	var anchor time.Time
	var sign int
	switch t.Anchor {
	case staykit.AnchorBeforeArrival:
		anchor, sign = res.ArrivalDate, -1
	case staykit.AnchorAfterArrival:
		anchor, sign = res.ArrivalDate, 1
	case staykit.AnchorBeforeDeparture:
		anchor, sign = res.DepartureDate, -1
	case staykit.AnchorAfterDeparture:
		anchor, sign = res.DepartureDate, 1
	default:
		return time.Time{}, fmt.Errorf("unknown anchor %q", t.Anchor)
	}

	day := anchor.In(loc).AddDate(0, 0, sign*t.OffsetDays)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

// BucketFor truncates the target instant to the configured granularity
// in the property timezone.
func BucketFor(target time.Time, granularity BucketGranularity, loc *time.Location) string {
	local := target.In(loc)
	if granularity == BucketMinute {
		return local.Format("2006-01-02T15:04")
	}
	return local.Format(time.DateOnly)
}

func parseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("time of day %q is not HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("time of day %q has bad hour", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time of day %q has bad minute", s)
	}
	return hour, minute, nil
}
