// Package settlement converts aggregated scores into currency-denominated
// reward records and requests one signed payout permit per recipient.
package settlement

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taskforge/rewards/internal/aggregate"
	"github.com/taskforge/rewards/internal/errors"
	"github.com/taskforge/rewards/internal/money"
	"github.com/taskforge/rewards/internal/monitoring"
	"github.com/taskforge/rewards/internal/roles"
	"github.com/taskforge/rewards/internal/types"
)

// Multiplier is a per-user reward multiplier with its stated reason.
type Multiplier struct {
	Value  money.Dec `json:"value"`
	Reason string    `json:"reason"`
}

// Store is the external wallet/multiplier/penalty store. It is read-only
// here except for penalty clearance.
type Store interface {
	Wallet(ctx context.Context, userID int64) (string, error)
	Multiplier(ctx context.Context, userID int64, repo string) (*Multiplier, error)
	Penalty(ctx context.Context, userID int64, repo, currency string) (money.Dec, error)
	// ClearPenalty reduces the outstanding penalty by the consumed amount,
	// deleting the record once nothing remains.
	ClearPenalty(ctx context.Context, userID int64, repo, currency string, consumed money.Dec) error
}

// Permit is the claimable payment artifact produced by the signer.
type Permit struct {
	ClaimURL string `json:"claim_url"`
	PermitID string `json:"permit_id"`
}

// Signer turns an amount/recipient pair into a spendable payment permit.
type Signer interface {
	SignPayout(ctx context.Context, address string, amount money.Dec, currency string, taskID, userID int64) (*Permit, error)
}

// Reward is one settled line item.
type Reward struct {
	Participant  types.Participant `json:"participant"`
	Address      string            `json:"address"`
	Amount       money.Dec         `json:"amount"`
	Currency     string            `json:"currency"`
	SourceTitles []string          `json:"source_titles"`
	ClaimURL     string            `json:"claim_url,omitempty"`
	PermitID     string            `json:"permit_id,omitempty"`
}

// Settlement is the final reward set for a task. Rewards are ordered by
// descending amount; participants without a payout address on file land in
// Fallback keyed by handle.
type Settlement struct {
	TaskID   int64                `json:"task_id"`
	Currency string               `json:"currency"`
	Rewards  []Reward             `json:"rewards"`
	Fallback map[string]money.Dec `json:"fallback,omitempty"`
}

// Total sums the settled amounts.
func (s *Settlement) Total() money.Dec {
	total := money.Zero()
	for _, r := range s.Rewards {
		total = total.Add(r.Amount)
	}
	return total
}

// Input is everything the builder needs beyond the aggregated totals.
type Input struct {
	Task     types.Task
	Price    money.Dec
	Currency string
	Totals   []aggregate.UserTotal
	// Titles names the reward sources per view, for the itemized comment.
	Titles map[roles.View][]string
}

// Builder resolves aggregate scores into signed reward records.
type Builder struct {
	store          Store
	signer         Signer
	logger         *monitoring.Logger
	maxPayout      money.Dec
	baseMultiplier money.Dec
}

// NewBuilder creates a settlement builder. maxPayout guards single payouts;
// baseMultiplier converts comment scores into currency units.
func NewBuilder(store Store, signer Signer, logger *monitoring.Logger, maxPayout, baseMultiplier money.Dec) *Builder {
	return &Builder{
		store:          store,
		signer:         signer,
		logger:         logger,
		maxPayout:      maxPayout,
		baseMultiplier: baseMultiplier,
	}
}

// pendingClearance defers the penalty write until all computation is done.
type pendingClearance struct {
	userID   int64
	consumed money.Dec
}

// Build converts totals into one reward per participant, applies
// multipliers and penalties, merges, sorts, and signs. Store writes happen
// only after every amount is computed; signer calls come last so a guard
// or conversion failure never leaves a dangling permit.
func (b *Builder) Build(ctx context.Context, in Input) (*Settlement, error) {
	settlement := &Settlement{
		TaskID:   in.Task.ID,
		Currency: in.Currency,
		Fallback: make(map[string]money.Dec),
	}

	var clearances []pendingClearance
	rewards := make([]Reward, 0, len(in.Totals))

	for _, ut := range in.Totals {
		amount, clearance, err := b.convert(ctx, in, ut)
		if err != nil {
			return nil, err
		}
		if clearance != nil {
			clearances = append(clearances, *clearance)
		}

		amount = amount.Round(2)
		if amount.IsZero() {
			continue
		}

		// Over-limit rewards are skipped outright, never clipped: silently
		// under-paying is worse than not paying and reporting it.
		if ut.TaskRewardShare().IsZero() && amount.Cmp(b.maxPayout) > 0 {
			guardErr := errors.NewMonetaryGuardError(ut.Participant.Handle, amount.String(), b.maxPayout.String())
			b.logger.DegradedLogger("settlement", guardErr.Error())
			settlement.Fallback[ut.Participant.Handle] = amount
			continue
		}

		address, err := b.store.Wallet(ctx, ut.Participant.ID)
		if err != nil {
			return nil, errors.NewExternalAPIError("store", err)
		}
		if address == "" {
			b.logger.DegradedLogger("settlement", "no payout address on file for "+ut.Participant.Handle)
			settlement.Fallback[ut.Participant.Handle] = amount
			continue
		}

		rewards = append(rewards, Reward{
			Participant:  ut.Participant,
			Address:      address,
			Amount:       amount,
			Currency:     in.Currency,
			SourceTitles: titlesFor(ut, in.Titles),
		})
	}

	// Deterministic ordering: descending amount, handle breaks ties.
	sort.Slice(rewards, func(i, j int) bool {
		if c := rewards[i].Amount.Cmp(rewards[j].Amount); c != 0 {
			return c > 0
		}
		return rewards[i].Participant.Handle < rewards[j].Participant.Handle
	})

	for _, c := range clearances {
		if err := b.store.ClearPenalty(ctx, c.userID, in.Task.Repo, in.Currency, c.consumed); err != nil {
			return nil, errors.NewExternalAPIError("store", err)
		}
	}

	if err := b.sign(ctx, in.Task.ID, rewards, settlement); err != nil {
		return nil, err
	}

	return settlement, nil
}

// convert turns one user total into a currency amount. The fixed task
// share uses price arithmetic with the per-user multiplier and penalty;
// the comment share uses the base multiplier.
func (b *Builder) convert(ctx context.Context, in Input, ut aggregate.UserTotal) (money.Dec, *pendingClearance, error) {
	amount := ut.CommentShare().Mul(b.baseMultiplier)

	taskShare := ut.TaskRewardShare()
	if taskShare.IsZero() {
		return amount, nil, nil
	}

	fixed := taskShare
	mult, err := b.store.Multiplier(ctx, ut.Participant.ID, in.Task.Repo)
	if err != nil {
		return money.Zero(), nil, errors.NewExternalAPIError("store", err)
	}
	if mult != nil {
		fixed = fixed.Mul(mult.Value)
		b.logger.Info("Applying reward multiplier",
			"user", ut.Participant.Handle,
			"value", mult.Value.String(),
			"reason", mult.Reason,
		)
	}

	penalty, err := b.store.Penalty(ctx, ut.Participant.ID, in.Task.Repo, in.Currency)
	if err != nil {
		return money.Zero(), nil, errors.NewExternalAPIError("store", err)
	}

	var clearance *pendingClearance
	if penalty.Sign() > 0 {
		consumed := penalty
		if fixed.Cmp(penalty) < 0 {
			consumed = fixed
		}
		fixed = fixed.Sub(consumed)
		clearance = &pendingClearance{userID: ut.Participant.ID, consumed: consumed}
	}

	return amount.Add(fixed), clearance, nil
}

// sign requests one permit per reward, each call writing into its own
// slot. A failed signer call degrades that recipient to the fallback map
// instead of failing the settlement.
func (b *Builder) sign(ctx context.Context, taskID int64, rewards []Reward, settlement *Settlement) error {
	permits := make([]*Permit, len(rewards))

	g, gctx := errgroup.WithContext(ctx)
	for i := range rewards {
		slot := i
		g.Go(func() error {
			r := rewards[slot]
			start := time.Now()
			permit, err := b.signer.SignPayout(gctx, r.Address, r.Amount, r.Currency, taskID, r.Participant.ID)
			b.logger.SignerLogger(r.Participant.Handle, r.Amount.StringFixed(2), r.Currency, err == nil, time.Since(start))
			if err != nil {
				return nil
			}
			permits[slot] = permit
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range rewards {
		if permits[i] == nil {
			settlement.Fallback[r.Participant.Handle] = r.Amount
			continue
		}
		r.ClaimURL = permits[i].ClaimURL
		r.PermitID = permits[i].PermitID
		settlement.Rewards = append(settlement.Rewards, r)
	}

	return nil
}

// titlesFor concatenates the source titles for the views the participant
// actually contributed in.
func titlesFor(ut aggregate.UserTotal, titles map[roles.View][]string) []string {
	views := make(map[roles.View]bool)
	for _, d := range ut.Details {
		views[d.View] = true
	}

	var out []string
	for _, view := range []roles.View{roles.ViewTask, roles.ViewReview} {
		if views[view] {
			out = append(out, titles[view]...)
		}
	}
	return out
}
