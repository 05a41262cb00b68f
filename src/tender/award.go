package tender

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/warp-contracts/shadowlink/src/utils/model"
	"github.com/warp-contracts/shadowlink/src/utils/notify"
	"github.com/warp-contracts/shadowlink/src/utils/settlement"
	"github.com/warp-contracts/shadowlink/src/utils/store"
	"github.com/warp-contracts/shadowlink/src/utils/workflow"
)

type SelectWinnerRequest struct {
	TenderId string `json:"tenderId" validate:"required"`
	BidId    string `json:"bidId" validate:"required"`
}

type SubmitWorkRequest struct {
	TenderId   string `json:"tenderId" validate:"required"`
	Submission string `json:"submission" validate:"required,max=65536"`

	// internal or external, defaults to external
	SettlementType string `json:"settlementType" validate:"omitempty,oneof=internal external"`

	// Defaults to the winner
	PayoutAddress string `json:"payoutAddress"`
}

type FinalizePaymentRequest struct {
	TenderId string `json:"tenderId" validate:"required"`
}

// Awards the tender to the bid. Other bids are removed.
func (self *Workflow) SelectWinner(ctx context.Context, actor string, req *SelectWinnerRequest) (tender *model.Tender, err error) {
	err = workflow.Validate(req)
	if err != nil {
		return
	}

	tender, err = self.GetTender(ctx, req.TenderId)
	if err != nil {
		return
	}
	if tender.Creator != actor {
		return nil, workflow.Wrap(workflow.ErrForbidden, "only the creator selects the winner")
	}
	if tender.Status != model.TenderStatusOpen {
		return nil, workflow.ErrNotOpen
	}

	bid, err := self.getBid(ctx, req.BidId)
	if err != nil {
		return
	}
	if bid.TenderId != tender.ID {
		return nil, workflow.Wrap(workflow.ErrValidation, "bid %s belongs to another tender", bid.ID)
	}

	err = self.tenders.UpdateOne(ctx, tender.ID,
		store.Filter{"status": model.TenderStatusOpen},
		store.Changes{
			"status":       model.TenderStatusInProgress,
			"winner":       bid.Bidder,
			"final_amount": bid.Amount,
		})
	if errors.Is(err, store.ErrConflict) {
		return nil, workflow.ErrNotOpen
	}
	if err != nil {
		self.counters.Errors.StoreErrors.Inc()
		return nil, err
	}

	self.removeLosingBids(ctx, tender.ID, bid.ID)

	self.counters.State.WinnersSelected.Inc()
	self.notifier.Notify(notify.NewEvent(notify.EventWinnerSelected, tender.ID).
		WithActor(actor).
		WithStatus(string(model.TenderStatusInProgress)))

	return self.GetTender(ctx, tender.ID)
}

// Best effort, failures only get logged
func (self *Workflow) removeLosingBids(ctx context.Context, tenderId, winningBidId string) {
	bids, err := self.bids.FindMany(ctx, store.Filter{"tender_id": tenderId})
	if err != nil {
		self.log.WithError(err).WithField("tender_id", tenderId).Warn("Failed to list losing bids")
		return
	}

	for _, bid := range bids {
		if bid.ID == winningBidId {
			continue
		}
		err = self.bids.DeleteOne(ctx, bid.ID, nil)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			self.log.WithError(err).WithField("bid_id", bid.ID).Warn("Failed to remove losing bid")
		}
	}
}

// Accepted once, the submission can't be overwritten
func (self *Workflow) SubmitWork(ctx context.Context, actor string, req *SubmitWorkRequest) (tender *model.Tender, err error) {
	err = workflow.Validate(req)
	if err != nil {
		return
	}
	submission := strings.TrimSpace(req.Submission)
	if submission == "" {
		return nil, workflow.Wrap(workflow.ErrValidation, "empty submission")
	}
	settlementType, err := workflow.SettlementType(req.SettlementType)
	if err != nil {
		return
	}

	tender, err = self.GetTender(ctx, req.TenderId)
	if err != nil {
		return
	}
	if tender.Status != model.TenderStatusInProgress {
		return nil, workflow.ErrNotInProgress
	}
	if tender.Winner == nil || *tender.Winner != actor {
		return nil, workflow.Wrap(workflow.ErrForbidden, "only the winner submits work")
	}
	if tender.WorkSubmission != nil {
		return nil, workflow.ErrWorkAlreadySubmitted
	}

	payout := strings.TrimSpace(req.PayoutAddress)
	if settlementType.IsInternal() {
		err = self.requireRegistered(ctx, actor, workflow.ErrNotEligible)
		if err != nil {
			return
		}
		if payout != "" && payout != actor {
			err = self.requireRegistered(ctx, payout, workflow.ErrRecipientNotEligible)
			if err != nil {
				return
			}
		}
	}

	changes := store.Changes{
		"work_submission":           submission,
		"submitted_at":              self.now().UTC(),
		"preferred_settlement_type": settlementType,
		"preferred_payout_address":  nil,
	}
	if payout != "" {
		changes["preferred_payout_address"] = payout
	}

	err = self.tenders.UpdateOne(ctx, tender.ID,
		store.Filter{"status": model.TenderStatusInProgress, "work_submission": nil},
		changes)
	if errors.Is(err, store.ErrConflict) {
		return nil, self.explainSubmitConflict(ctx, tender.ID)
	}
	if err != nil {
		self.counters.Errors.StoreErrors.Inc()
		return nil, err
	}

	self.counters.State.WorkSubmitted.Inc()
	self.notifier.Notify(notify.NewEvent(notify.EventWorkSubmitted, tender.ID).WithActor(actor))

	return self.GetTender(ctx, tender.ID)
}

func (self *Workflow) explainSubmitConflict(ctx context.Context, id string) error {
	tender, err := self.GetTender(ctx, id)
	if err != nil {
		return err
	}
	if tender.Status != model.TenderStatusInProgress {
		return workflow.ErrNotInProgress
	}
	return workflow.ErrWorkAlreadySubmitted
}

// Pays the winner and closes the tender. Nothing changes unless the settlement succeeded.
func (self *Workflow) FinalizePayment(ctx context.Context, actor string, req *FinalizePaymentRequest, signer settlement.Signer) (tender *model.Tender, result *settlement.Result, err error) {
	err = workflow.Validate(req)
	if err != nil {
		return
	}

	tender, err = self.GetTender(ctx, req.TenderId)
	if err != nil {
		return
	}
	if tender.Creator != actor {
		return nil, nil, workflow.Wrap(workflow.ErrForbidden, "only the creator pays")
	}
	if tender.Status != model.TenderStatusInProgress {
		return nil, nil, workflow.ErrNotInProgress
	}
	if tender.WorkSubmission == nil {
		return nil, nil, workflow.ErrNoWorkSubmission
	}

	recipient := tender.PayoutAddress()
	kind := tender.SettlementType()
	if kind.IsInternal() {
		err = self.requireRegistered(ctx, actor, workflow.ErrSenderNotEligible)
		if err != nil {
			return nil, nil, err
		}
		err = self.requireRegistered(ctx, recipient, workflow.ErrRecipientNotEligible)
		if err != nil {
			return nil, nil, err
		}
	}

	amount, err := self.amounts.ToMinorUnits(*tender.FinalAmount)
	if err != nil {
		return nil, nil, err
	}

	result = self.settler.Transfer(ctx, settlement.TransferRequest{
		Sender:    actor,
		Recipient: recipient,
		Amount:    amount,
		Kind:      kind,
	}, signer)
	if !result.Success {
		return tender, result, fmt.Errorf("tender payment failed: %w", result.Err())
	}

	ctx, cancel := self.commitContext(ctx)
	defer cancel()

	err = self.history.Record(ctx, result.Reference, "tender:"+result.HistoryKind())
	if err != nil {
		self.log.WithError(err).WithField("reference", result.Reference).Error("Failed to record tender payment")
	}

	paidAt := self.now().UTC()
	err = self.tenders.UpdateOne(ctx, tender.ID,
		store.Filter{"status": model.TenderStatusInProgress},
		store.Changes{
			"status":               model.TenderStatusPaid,
			"settlement_reference": result.Reference,
			"paid_at":              paidAt,
		})
	switch {
	case errors.Is(err, store.ErrConflict):
		// Another payment won the race, this one stays only in the audit log
		self.counters.Errors.AlreadyFinalized.Inc()
		self.log.WithField("tender_id", tender.ID).
			WithField("reference", result.Reference).
			Error("Tender already finalized, duplicate settlement recorded")
		return nil, result, workflow.Wrap(workflow.ErrAlreadyFinalized, "tender %s", tender.ID)
	case err != nil:
		// The write may have landed anyway
		tender, err = self.reconcilePaid(ctx, tender.ID, result.Reference, err)
		if err != nil {
			return nil, result, err
		}
	}

	err = self.parties.IncrementTendersWon(ctx, *tender.Winner)
	if err != nil {
		self.log.WithError(err).WithField("winner", *tender.Winner).Warn("Failed to count won tender")
	}

	self.counters.State.TendersPaid.Inc()
	self.notifier.Notify(notify.NewEvent(notify.EventTenderPaid, tender.ID).
		WithActor(actor).
		WithStatus(string(model.TenderStatusPaid)).
		WithReference(result.Reference))

	tender, err = self.GetTender(ctx, tender.ID)
	return tender, result, err
}

// Re-reads the tender after a failed commit to learn whether it went through
func (self *Workflow) reconcilePaid(ctx context.Context, id, reference string, cause error) (*model.Tender, error) {
	self.counters.Errors.StoreErrors.Inc()

	tender, err := self.GetTender(ctx, id)
	if err != nil {
		self.log.WithError(cause).WithField("reference", reference).Error("Tender settled but its state is unknown")
		return nil, fmt.Errorf("settled as %s, state unknown: %w", reference, cause)
	}

	if tender.Status == model.TenderStatusPaid && tender.SettlementReference != nil && *tender.SettlementReference == reference {
		return tender, nil
	}
	if tender.Status == model.TenderStatusPaid {
		self.counters.Errors.AlreadyFinalized.Inc()
		return nil, workflow.Wrap(workflow.ErrAlreadyFinalized, "tender %s", id)
	}

	self.log.WithError(cause).WithField("reference", reference).Error("Tender settled but not marked as paid")
	return nil, fmt.Errorf("settled as %s, failed to mark as paid: %w", reference, cause)
}
