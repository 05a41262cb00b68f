package tender

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"
	"github.com/warp-contracts/shadowlink/src/utils/model"
	"github.com/warp-contracts/shadowlink/src/utils/notify"
	"github.com/warp-contracts/shadowlink/src/utils/store"
	"github.com/warp-contracts/shadowlink/src/utils/workflow"
)

type CreateTenderRequest struct {
	Title       string          `json:"title" validate:"required,max=256"`
	Description string          `json:"description" validate:"max=8192"`
	MaxBudget   decimal.Decimal `json:"maxBudget"`

	// Optional
	Deadline time.Time `json:"deadline"`
}

type PlaceBidRequest struct {
	TenderId string          `json:"tenderId" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`

	// Defaults to the bidder's display name
	BidderName string `json:"bidderName" validate:"max=128"`
}

type UpdateBidRequest struct {
	BidId  string          `json:"bidId" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type WithdrawBidRequest struct {
	BidId string `json:"bidId" validate:"required"`
}

func (self *Workflow) CreateTender(ctx context.Context, actor string, req *CreateTenderRequest) (tender *model.Tender, err error) {
	err = workflow.Validate(req)
	if err != nil {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, workflow.Wrap(workflow.ErrValidation, "empty title")
	}
	err = self.amounts.Validate(req.MaxBudget)
	if err != nil {
		return
	}
	if !req.Deadline.IsZero() && !req.Deadline.After(self.now()) {
		return nil, workflow.Wrap(workflow.ErrValidation, "deadline %s is in the past", req.Deadline)
	}

	tender = &model.Tender{
		ID:          xid.New().String(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		MaxBudget:   req.MaxBudget,
		Status:      model.TenderStatusOpen,
		Creator:     actor,
		Deadline:    req.Deadline.UTC(),
	}
	err = self.tenders.Create(ctx, tender)
	if err != nil {
		self.counters.Errors.StoreErrors.Inc()
		return nil, err
	}

	err = self.parties.IncrementTendersCreated(ctx, actor)
	if err != nil {
		self.log.WithError(err).WithField("creator", actor).Warn("Failed to count created tender")
		err = nil
	}

	self.counters.State.TendersCreated.Inc()
	self.notifier.Notify(notify.NewEvent(notify.EventTenderCreated, tender.ID).
		WithActor(actor).
		WithStatus(string(tender.Status)))

	return
}

// Bidding is possible only while the tender is open and before the deadline
func (self *Workflow) checkBiddable(tender *model.Tender) error {
	if tender.Status != model.TenderStatusOpen {
		return workflow.ErrNotOpen
	}
	if !tender.Deadline.IsZero() && self.now().After(tender.Deadline) {
		return workflow.ErrDeadlinePassed
	}
	return nil
}

func (self *Workflow) checkAmount(tender *model.Tender, amount decimal.Decimal) error {
	err := self.amounts.Validate(amount)
	if err != nil {
		return err
	}
	if amount.GreaterThan(tender.MaxBudget) {
		return workflow.Wrap(workflow.ErrValidation, "bid %s exceeds the budget of %s", amount, tender.MaxBudget)
	}
	return nil
}

func (self *Workflow) PlaceBid(ctx context.Context, actor string, req *PlaceBidRequest) (bid *model.Bid, err error) {
	err = workflow.Validate(req)
	if err != nil {
		return
	}

	tender, err := self.GetTender(ctx, req.TenderId)
	if err != nil {
		return
	}
	if tender.Creator == actor {
		return nil, workflow.Wrap(workflow.ErrForbidden, "can't bid on own tender")
	}
	err = self.checkBiddable(tender)
	if err != nil {
		return
	}
	err = self.checkAmount(tender, req.Amount)
	if err != nil {
		return
	}

	existing, err := self.bids.FindMany(ctx, store.Filter{"tender_id": tender.ID, "bidder": actor}, store.Limit(1))
	if err != nil {
		return
	}
	if len(existing) > 0 {
		return nil, workflow.ErrDuplicateBid
	}

	name := strings.TrimSpace(req.BidderName)
	if name == "" {
		name = self.parties.DisplayName(ctx, "", actor)
	}

	bid = &model.Bid{
		ID:          xid.New().String(),
		TenderId:    tender.ID,
		Bidder:      actor,
		BidderName:  name,
		Amount:      req.Amount,
		DepositPaid: true,
	}
	err = self.bids.Create(ctx, bid)
	if errors.Is(err, store.ErrDuplicate) {
		// Placed concurrently
		return nil, workflow.ErrDuplicateBid
	}
	if err != nil {
		self.counters.Errors.StoreErrors.Inc()
		return nil, err
	}

	// Winner could have been selected in the meantime, bids don't outlive an open tender
	err = self.ensureStillOpen(ctx, bid)
	if err != nil {
		return nil, err
	}

	self.counters.State.BidsPlaced.Inc()
	self.notifier.Notify(notify.NewEvent(notify.EventBidPlaced, tender.ID).WithActor(actor))
	return
}

func (self *Workflow) ensureStillOpen(ctx context.Context, bid *model.Bid) error {
	tender, err := self.GetTender(ctx, bid.TenderId)
	if err != nil {
		return err
	}
	if tender.Status == model.TenderStatusOpen {
		return nil
	}

	err = self.bids.DeleteOne(ctx, bid.ID, nil)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		self.log.WithError(err).WithField("bid_id", bid.ID).Error("Failed to remove bid placed on a closed tender")
	}
	return workflow.ErrNotOpen
}

// Bid owned by the actor on a tender that's still open
func (self *Workflow) ownBid(ctx context.Context, actor, bidId string) (bid *model.Bid, tender *model.Tender, err error) {
	bid, err = self.getBid(ctx, bidId)
	if err != nil {
		return
	}
	if bid.Bidder != actor {
		return nil, nil, workflow.Wrap(workflow.ErrForbidden, "bid belongs to another bidder")
	}

	tender, err = self.GetTender(ctx, bid.TenderId)
	if err != nil {
		return
	}
	err = self.checkBiddable(tender)
	return
}

func (self *Workflow) UpdateBid(ctx context.Context, actor string, req *UpdateBidRequest) (bid *model.Bid, err error) {
	err = workflow.Validate(req)
	if err != nil {
		return
	}

	bid, tender, err := self.ownBid(ctx, actor, req.BidId)
	if err != nil {
		return
	}
	err = self.checkAmount(tender, req.Amount)
	if err != nil {
		return
	}

	err = self.bids.UpdateOne(ctx, bid.ID, store.Filter{"bidder": actor}, store.Changes{"amount": req.Amount})
	if errors.Is(err, store.ErrNotFound) {
		// Removed when a winner got selected
		return nil, workflow.ErrNotOpen
	}
	if err != nil {
		return
	}

	// Winner could have been selected in the meantime, awarded bids don't change
	err = self.revertUpdateIfClosed(ctx, bid, req.Amount)
	if err != nil {
		return nil, err
	}

	self.notifier.Notify(notify.NewEvent(notify.EventBidUpdated, tender.ID).WithActor(actor))
	return self.getBid(ctx, bid.ID)
}

func (self *Workflow) WithdrawBid(ctx context.Context, actor string, req *WithdrawBidRequest) (err error) {
	err = workflow.Validate(req)
	if err != nil {
		return
	}

	bid, tender, err := self.ownBid(ctx, actor, req.BidId)
	if err != nil {
		return
	}

	err = self.bids.DeleteOne(ctx, bid.ID, store.Filter{"bidder": actor})
	if errors.Is(err, store.ErrNotFound) {
		return workflow.ErrNotOpen
	}
	if err != nil {
		return
	}

	err = self.restoreIfAwarded(ctx, bid)
	if err != nil {
		return
	}

	self.notifier.Notify(notify.NewEvent(notify.EventBidWithdrawn, tender.ID).WithActor(actor))
	return
}

// Tender left open between the check and the write. The winning bid keeps the amount it was awarded with.
func (self *Workflow) revertUpdateIfClosed(ctx context.Context, bid *model.Bid, amount decimal.Decimal) error {
	tender, err := self.GetTender(ctx, bid.TenderId)
	if err != nil {
		return err
	}
	if tender.Status == model.TenderStatusOpen {
		return nil
	}

	previous := bid.Amount
	if isWinning(tender, bid) && tender.FinalAmount != nil {
		if tender.FinalAmount.Equal(amount) {
			// Awarded with the updated amount
			return nil
		}
		previous = *tender.FinalAmount
	}

	err = self.bids.UpdateOne(ctx, bid.ID, store.Filter{"bidder": bid.Bidder}, store.Changes{"amount": previous})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		self.counters.Errors.StoreErrors.Inc()
		self.log.WithError(err).WithField("bid_id", bid.ID).Error("Failed to revert bid updated on a closed tender")
		return err
	}
	return workflow.ErrNotOpen
}

// Winning bid withdrawn while the winner was being selected is put back
func (self *Workflow) restoreIfAwarded(ctx context.Context, bid *model.Bid) error {
	tender, err := self.GetTender(ctx, bid.TenderId)
	if err != nil {
		return err
	}
	if tender.Status == model.TenderStatusOpen {
		return nil
	}
	if !isWinning(tender, bid) {
		// Losing bids are removed anyway
		return workflow.ErrNotOpen
	}

	err = self.bids.Create(ctx, bid)
	if err != nil && !errors.Is(err, store.ErrDuplicate) {
		self.counters.Errors.StoreErrors.Inc()
		self.log.WithError(err).WithField("bid_id", bid.ID).Error("Failed to restore awarded bid")
		return err
	}
	return workflow.ErrNotOpen
}

// One bid per bidder, the winner identifies the bid
func isWinning(tender *model.Tender, bid *model.Bid) bool {
	return tender.Winner != nil && *tender.Winner == bid.Bidder
}
