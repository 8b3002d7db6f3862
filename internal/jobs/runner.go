// Package jobs runs the periodic ledger work across every owner.
package jobs

import (
	"context"
	"fmt"
	"log"

	"ledger/internal/date"
	"ledger/internal/models"
	"ledger/internal/services"
)

// ActorID is recorded as the actor of every audit row a job writes.
const ActorID = "system"

type OwnerLister interface {
	Owners(ctx context.Context) ([]string, error)
}

type RateRefresher interface {
	RefreshRates(ctx context.Context) (int, error)
}

type RecurringProcessor interface {
	ProcessDue(ctx context.Context, actor services.Actor, kind models.TransactionKind, asOf date.Date) (services.ProcessResult, error)
}

type RenewalProcessor interface {
	ProcessRenewals(ctx context.Context, actor services.Actor, asOf date.Date) (services.ProcessResult, error)
	NotifyRenewals(ctx context.Context, actor services.Actor, today date.Date) (services.NotifyResult, error)
}

type Runner struct {
	owners    OwnerLister
	rates     RateRefresher
	recurring RecurringProcessor
	renewals  RenewalProcessor
}

func NewRunner(owners OwnerLister, rates RateRefresher, recurring RecurringProcessor, renewals RenewalProcessor) *Runner {
	return &Runner{owners: owners, rates: rates, recurring: recurring, renewals: renewals}
}

// Summary aggregates a run over all owners. Failed entries are prefixed with
// the owner id.
type Summary struct {
	Owners  int                       `json:"owners"`
	Created int                       `json:"created"`
	Sent    int                       `json:"sent"`
	Failed  []services.ProcessFailure `json:"failed"`
}

func (s *Summary) fail(ownerID string, failures ...services.ProcessFailure) {
	for _, f := range failures {
		s.Failed = append(s.Failed, services.ProcessFailure{ID: ownerID + "/" + f.ID, Error: f.Error})
	}
}

func actorFor(ownerID string) services.Actor {
	return services.Actor{OwnerID: ownerID, ActorID: ActorID}
}

func (r *Runner) RefreshRates(ctx context.Context) (int, error) {
	updated, err := r.rates.RefreshRates(ctx)
	if err != nil {
		return 0, fmt.Errorf("refresh rates: %w", err)
	}
	log.Printf("refreshed %d exchange rates", updated)
	return updated, nil
}

// ProcessRecurring materializes due incomes and expenses for every owner.
// One owner's failure does not stop the others.
func (r *Runner) ProcessRecurring(ctx context.Context, asOf date.Date) (Summary, error) {
	return r.eachOwner(ctx, func(ownerID string, sum *Summary) error {
		for _, kind := range []models.TransactionKind{models.KindIncome, models.KindExpense} {
			res, err := r.recurring.ProcessDue(ctx, actorFor(ownerID), kind, asOf)
			if err != nil {
				return err
			}
			sum.Created += res.Created
			sum.fail(ownerID, res.Failed...)
		}
		return nil
	})
}

func (r *Runner) ProcessRenewals(ctx context.Context, asOf date.Date) (Summary, error) {
	return r.eachOwner(ctx, func(ownerID string, sum *Summary) error {
		res, err := r.renewals.ProcessRenewals(ctx, actorFor(ownerID), asOf)
		if err != nil {
			return err
		}
		sum.Created += res.Created
		sum.fail(ownerID, res.Failed...)
		return nil
	})
}

func (r *Runner) NotifyRenewals(ctx context.Context, today date.Date) (Summary, error) {
	return r.eachOwner(ctx, func(ownerID string, sum *Summary) error {
		res, err := r.renewals.NotifyRenewals(ctx, actorFor(ownerID), today)
		if err != nil {
			return err
		}
		sum.Sent += res.Sent
		sum.fail(ownerID, res.Failed...)
		return nil
	})
}

func (r *Runner) eachOwner(ctx context.Context, fn func(ownerID string, sum *Summary) error) (Summary, error) {
	owners, err := r.owners.Owners(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list owners: %w", err)
	}
	sum := Summary{Owners: len(owners), Failed: []services.ProcessFailure{}}
	for _, ownerID := range owners {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := fn(ownerID, &sum); err != nil {
			log.Printf("job failed for owner %s: %v", ownerID, err)
			sum.fail(ownerID, services.ProcessFailure{ID: "*", Error: err.Error()})
		}
	}
	return sum, nil
}
