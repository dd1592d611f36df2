/**
 * @description
 * This file contains the reminder sweep: the batch job that walks every
 * user/card/credit combination, asks the recurrence engine for the next reset
 * date, and emits notification intents for credits whose reminder offsets
 * land exactly on today.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clawback/clawback-service/internal/catalog"
	"github.com/clawback/clawback-service/internal/domain"
	"github.com/clawback/clawback-service/internal/schedule"
)

// SweepRepository defines the database operations the sweep needs.
type SweepRepository interface {
	ListProfiles(ctx context.Context) ([]domain.Profile, error)
	ListCardAssignments(ctx context.Context) ([]domain.CardAssignment, error)
	ListCreditStates(ctx context.Context) ([]domain.CreditState, error)
	AppendNotification(ctx context.Context, intent domain.NotificationIntent) error
}

// EventPublisher defines the interface for handing committed intents to
// delivery workers.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

// SweepResult is what one sweep invocation produced.
type SweepResult struct {
	DryRun  bool                        `json:"dry_run"`
	Intents []domain.NotificationIntent `json:"intents,omitempty"`
	Written int                         `json:"written"`
}

// Sweeper computes and, in commit mode, persists reminder notifications.
type Sweeper struct {
	repo     SweepRepository
	catalog  *catalog.Catalog
	producer EventPublisher
	logger   *slog.Logger
}

// NewSweeper creates a reminder sweeper. The producer may be nil; commit mode
// then only writes the notification log.
func NewSweeper(repo SweepRepository, cat *catalog.Catalog, producer EventPublisher, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		repo:     repo,
		catalog:  cat,
		producer: producer,
		logger:   logger,
	}
}

// Run executes one sweep. Any snapshot load error aborts the whole run with
// no partial progress. In commit mode each intent is an independent append to
// the notification log with no deduplication against prior runs, so two runs
// on the same day write duplicate rows; idempotency is the invoker's concern.
//
// A reminder fires only when due-date minus offset equals today exactly. A
// missed run therefore misses that offset's reminder permanently; this is a
// known gap, kept until product decides on a sent-log check.
func (s *Sweeper) Run(ctx context.Context, now time.Time, dryRun bool) (SweepResult, error) {
	today := schedule.Day(now)

	profiles, err := s.repo.ListProfiles(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("load profiles: %w", err)
	}
	assignments, err := s.repo.ListCardAssignments(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("load card assignments: %w", err)
	}
	states, err := s.repo.ListCreditStates(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("load credit states: %w", err)
	}

	assignmentsByUser := make(map[string][]domain.CardAssignment, len(profiles))
	for _, a := range assignments {
		assignmentsByUser[a.UserID] = append(assignmentsByUser[a.UserID], a)
	}
	stateByKey := make(map[string]domain.CreditState, len(states))
	for _, st := range states {
		stateByKey[st.UserID+"|"+st.StateKey] = st
	}

	var intents []domain.NotificationIntent
	for _, profile := range profiles {
		channels := profile.Channels()
		if len(channels) == 0 {
			continue
		}

		for _, assignment := range assignmentsByUser[profile.UserID] {
			if assignment.StartDate == nil {
				// No anchor, no schedule.
				continue
			}
			credits, known := s.catalog.CreditsForCard(assignment.CardKey)
			if !known {
				// Catalog coverage evolves independently of user data.
				continue
			}

			for _, credit := range credits {
				state, ok := stateByKey[profile.UserID+"|"+credit.StateKey()]
				if !ok || !state.Eligible() {
					continue
				}

				due, hasNext := schedule.NextResetDate(credit.Frequency, *assignment.StartDate, today)
				if !hasNext {
					continue
				}

				for _, offset := range profile.Offsets() {
					if !due.AddDate(0, 0, -offset).Equal(today) {
						continue
					}
					for _, channel := range channels {
						intents = append(intents, domain.NotificationIntent{
							ID:         uuid.NewString(),
							UserID:     profile.UserID,
							Channel:    channel,
							StateKey:   credit.StateKey(),
							DueDate:    due,
							OffsetDays: offset,
							Message:    reminderMessage(credit.Title, due, offset),
						})
					}
				}
			}
		}
	}

	if dryRun {
		return SweepResult{DryRun: true, Intents: intents}, nil
	}

	written := 0
	for _, intent := range intents {
		// Inserts are independent; a failed append is logged and the sweep
		// keeps going.
		if err := s.repo.AppendNotification(ctx, intent); err != nil {
			s.logger.Error("failed to append notification", "user_id", intent.UserID, "state_key", intent.StateKey, "error", err)
		}
		written++

		if s.producer != nil {
			event := domain.ReminderDueEvent{
				IntentID:   intent.ID,
				UserID:     intent.UserID,
				Channel:    intent.Channel,
				StateKey:   intent.StateKey,
				DueDate:    intent.DueDate.Format("2006-01-02"),
				OffsetDays: intent.OffsetDays,
				Message:    intent.Message,
			}
			if err := s.producer.Publish(ctx, "reminder.due", event); err != nil {
				s.logger.Error("failed to publish reminder event", "user_id", intent.UserID, "state_key", intent.StateKey, "error", err)
			}
		}
	}

	s.logger.Info("reminder sweep finished", "intents", len(intents), "written", written)
	return SweepResult{Written: written}, nil
}

func reminderMessage(title string, due time.Time, offset int) string {
	if offset == 1 {
		return fmt.Sprintf("Your %s resets tomorrow (%s). Use it before it's gone.", title, due.Format("Jan 2"))
	}
	return fmt.Sprintf("Your %s resets on %s, %d days from now. Use it before it's gone.", title, due.Format("Jan 2"), offset)
}
