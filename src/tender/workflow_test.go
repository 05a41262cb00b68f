package tender

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/warp-contracts/shadowlink/src/eligibility"
	"github.com/warp-contracts/shadowlink/src/party"
	"github.com/warp-contracts/shadowlink/src/utils/config"
	"github.com/warp-contracts/shadowlink/src/utils/model"
	"github.com/warp-contracts/shadowlink/src/utils/notify"
	"github.com/warp-contracts/shadowlink/src/utils/settlement"
	"github.com/warp-contracts/shadowlink/src/utils/store"
	"github.com/warp-contracts/shadowlink/src/utils/workflow"
)

const (
	creator = "gov"
	alice   = "alice"
	bob     = "bob"
)

func TestWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(WorkflowTestSuite))
}

type WorkflowTestSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	settler  *fakeSettler
	history  *fakeHistory
	parties  *party.Directory
	tracker  *eligibility.Tracker
	workflow *Workflow
}

func (s *WorkflowTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.settler = &fakeSettler{}
	s.history = &fakeHistory{}

	conf := config.Default()
	s.parties = party.NewDirectory(store.NewMemory[model.Party]().WithKey("address"))
	s.tracker = eligibility.NewTracker(conf).WithDirectory(s.parties)

	s.workflow = NewWorkflow(conf).
		WithStore(
			store.NewMemory[model.Tender](),
			store.NewMemory[model.Bid]().WithUnique("tender_id", "bidder"),
		).
		WithDirectory(s.parties).
		WithRegistry(s.tracker).
		WithSettler(s.settler).
		WithHistory(s.history).
		WithNotifier(notify.NewRecorder(100)).
		WithClock(func() time.Time { return s.now })
}

func amount(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func (s *WorkflowTestSuite) createTender(budget string) *model.Tender {
	tender, err := s.workflow.CreateTender(s.ctx, creator, &CreateTenderRequest{
		Title:     "Bridge repair",
		MaxBudget: amount(budget),
		Deadline:  s.now.Add(24 * time.Hour),
	})
	require.Nil(s.T(), err)
	return tender
}

func (s *WorkflowTestSuite) placeBid(tenderId, bidder, value string) *model.Bid {
	bid, err := s.workflow.PlaceBid(s.ctx, bidder, &PlaceBidRequest{TenderId: tenderId, Amount: amount(value)})
	require.Nil(s.T(), err)
	return bid
}

// Tender awarded to alice for 30000 with work submitted
func (s *WorkflowTestSuite) awarded(settlementType string) *model.Tender {
	tender := s.createTender("50000")
	bid := s.placeBid(tender.ID, alice, "30000")
	s.placeBid(tender.ID, bob, "45000")

	_, err := s.workflow.SelectWinner(s.ctx, creator, &SelectWinnerRequest{TenderId: tender.ID, BidId: bid.ID})
	require.Nil(s.T(), err)

	tender, err = s.workflow.SubmitWork(s.ctx, alice, &SubmitWorkRequest{
		TenderId:       tender.ID,
		Submission:     "https://example.com/report.pdf",
		SettlementType: settlementType,
	})
	require.Nil(s.T(), err)
	return tender
}

func (s *WorkflowTestSuite) TestCreateTender() {
	tender := s.createTender("50000")
	require.Equal(s.T(), model.TenderStatusOpen, tender.Status)
	require.Equal(s.T(), creator, tender.Creator)
	require.NotEmpty(s.T(), tender.ID)

	profile, err := s.parties.Find(s.ctx, creator)
	require.Nil(s.T(), err)
	require.Equal(s.T(), 1, profile.TendersCreated)

	_, err = s.workflow.CreateTender(s.ctx, creator, &CreateTenderRequest{Title: "x", MaxBudget: amount("4")})
	require.ErrorIs(s.T(), err, workflow.ErrValidation)

	_, err = s.workflow.CreateTender(s.ctx, creator, &CreateTenderRequest{MaxBudget: amount("100")})
	require.ErrorIs(s.T(), err, workflow.ErrValidation)

	_, err = s.workflow.CreateTender(s.ctx, creator, &CreateTenderRequest{
		Title:     "late",
		MaxBudget: amount("100"),
		Deadline:  s.now.Add(-time.Minute),
	})
	require.ErrorIs(s.T(), err, workflow.ErrValidation)
}

func (s *WorkflowTestSuite) TestListTendersNewestFirst() {
	first := s.createTender("100")
	second := s.createTender("200")

	tenders, err := s.workflow.ListTenders(s.ctx, &ListTendersRequest{})
	require.Nil(s.T(), err)
	require.Len(s.T(), tenders, 2)
	require.Equal(s.T(), second.ID, tenders[0].ID)
	require.Equal(s.T(), first.ID, tenders[1].ID)

	tenders, err = s.workflow.ListTenders(s.ctx, &ListTendersRequest{Status: "paid"})
	require.Nil(s.T(), err)
	require.Empty(s.T(), tenders)

	_, err = s.workflow.ListTenders(s.ctx, &ListTendersRequest{Status: "closed"})
	require.ErrorIs(s.T(), err, workflow.ErrValidation)
}

func (s *WorkflowTestSuite) TestPlaceBid() {
	tender := s.createTender("50000")
	bid := s.placeBid(tender.ID, alice, "30000")
	require.True(s.T(), bid.DepositPaid)
	require.Equal(s.T(), alice, bid.BidderName)

	_, err := s.workflow.PlaceBid(s.ctx, alice, &PlaceBidRequest{TenderId: tender.ID, Amount: amount("20000")})
	require.ErrorIs(s.T(), err, workflow.ErrDuplicateBid)
	require.ErrorIs(s.T(), err, workflow.ErrInvalidState)

	_, err = s.workflow.PlaceBid(s.ctx, bob, &PlaceBidRequest{TenderId: tender.ID, Amount: amount("50000.01")})
	require.ErrorIs(s.T(), err, workflow.ErrValidation)

	_, err = s.workflow.PlaceBid(s.ctx, bob, &PlaceBidRequest{TenderId: tender.ID, Amount: amount("4")})
	require.ErrorIs(s.T(), err, workflow.ErrValidation)

	_, err = s.workflow.PlaceBid(s.ctx, creator, &PlaceBidRequest{TenderId: tender.ID, Amount: amount("100")})
	require.ErrorIs(s.T(), err, workflow.ErrForbidden)

	_, err = s.workflow.PlaceBid(s.ctx, bob, &PlaceBidRequest{TenderId: "missing", Amount: amount("100")})
	require.ErrorIs(s.T(), err, workflow.ErrNotFound)

	bids, err := s.workflow.ListBids(s.ctx, tender.ID)
	require.Nil(s.T(), err)
	require.Len(s.T(), bids, 1)
}

func (s *WorkflowTestSuite) TestBidderNameFromProfile() {
	name := "Alice Builders"
	_, err := s.parties.UpdateProfile(s.ctx, alice, &party.UpdateProfileRequest{Name: &name})
	require.Nil(s.T(), err)

	tender := s.createTender("100")
	bid := s.placeBid(tender.ID, alice, "50")
	require.Equal(s.T(), name, bid.BidderName)
}

func (s *WorkflowTestSuite) TestConcurrentDuplicateBids() {
	tender := s.createTender("100")

	var (
		wg        sync.WaitGroup
		mtx       sync.Mutex
		succeeded int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.workflow.PlaceBid(s.ctx, alice, &PlaceBidRequest{TenderId: tender.ID, Amount: amount("50")})
			if err == nil {
				mtx.Lock()
				succeeded++
				mtx.Unlock()
				return
			}
			require.ErrorIs(s.T(), err, workflow.ErrDuplicateBid)
		}()
	}
	wg.Wait()
	require.Equal(s.T(), 1, succeeded)
}

func (s *WorkflowTestSuite) TestDeadlinePassed() {
	tender := s.createTender("100")
	s.now = s.now.Add(25 * time.Hour)

	_, err := s.workflow.PlaceBid(s.ctx, alice, &PlaceBidRequest{TenderId: tender.ID, Amount: amount("50")})
	require.ErrorIs(s.T(), err, workflow.ErrDeadlinePassed)
}

func (s *WorkflowTestSuite) TestUpdateAndWithdrawBid() {
	tender := s.createTender("100")
	bid := s.placeBid(tender.ID, alice, "50")

	updated, err := s.workflow.UpdateBid(s.ctx, alice, &UpdateBidRequest{BidId: bid.ID, Amount: amount("60")})
	require.Nil(s.T(), err)
	require.True(s.T(), amount("60").Equal(updated.Amount))

	_, err = s.workflow.UpdateBid(s.ctx, bob, &UpdateBidRequest{BidId: bid.ID, Amount: amount("70")})
	require.ErrorIs(s.T(), err, workflow.ErrForbidden)

	_, err = s.workflow.UpdateBid(s.ctx, alice, &UpdateBidRequest{BidId: bid.ID, Amount: amount("101")})
	require.ErrorIs(s.T(), err, workflow.ErrValidation)

	require.ErrorIs(s.T(), s.workflow.WithdrawBid(s.ctx, bob, &WithdrawBidRequest{BidId: bid.ID}), workflow.ErrForbidden)
	require.Nil(s.T(), s.workflow.WithdrawBid(s.ctx, alice, &WithdrawBidRequest{BidId: bid.ID}))

	bids, err := s.workflow.ListBids(s.ctx, tender.ID)
	require.Nil(s.T(), err)
	require.Empty(s.T(), bids)

	// Withdrawn bid can be placed again
	s.placeBid(tender.ID, alice, "55")
}

func (s *WorkflowTestSuite) withHookedBids() *hookedBids {
	bids := &hookedBids{Collection: store.NewMemory[model.Bid]().WithUnique("tender_id", "bidder")}
	s.workflow.WithStore(s.workflow.tenders, bids)
	return bids
}

func (s *WorkflowTestSuite) TestUpdateBidWhileWinnerSelected() {
	bids := s.withHookedBids()
	tender := s.createTender("50000")
	bid := s.placeBid(tender.ID, alice, "30000")
	s.placeBid(tender.ID, bob, "45000")

	bids.beforeUpdate = func() {
		_, err := s.workflow.SelectWinner(s.ctx, creator, &SelectWinnerRequest{TenderId: tender.ID, BidId: bid.ID})
		require.Nil(s.T(), err)
	}

	_, err := s.workflow.UpdateBid(s.ctx, alice, &UpdateBidRequest{BidId: bid.ID, Amount: amount("49000")})
	require.ErrorIs(s.T(), err, workflow.ErrNotOpen)

	// Awarded bid keeps the amount it won with
	awarded, err := s.workflow.GetTender(s.ctx, tender.ID)
	require.Nil(s.T(), err)
	require.Equal(s.T(), model.TenderStatusInProgress, awarded.Status)
	require.True(s.T(), amount("30000").Equal(*awarded.FinalAmount))

	stored, err := s.workflow.getBid(s.ctx, bid.ID)
	require.Nil(s.T(), err)
	require.True(s.T(), amount("30000").Equal(stored.Amount))
}

func (s *WorkflowTestSuite) TestWithdrawBidWhileWinnerSelected() {
	bids := s.withHookedBids()
	tender := s.createTender("50000")
	bid := s.placeBid(tender.ID, alice, "30000")

	bids.beforeDelete = func() {
		_, err := s.workflow.SelectWinner(s.ctx, creator, &SelectWinnerRequest{TenderId: tender.ID, BidId: bid.ID})
		require.Nil(s.T(), err)
	}

	err := s.workflow.WithdrawBid(s.ctx, alice, &WithdrawBidRequest{BidId: bid.ID})
	require.ErrorIs(s.T(), err, workflow.ErrNotOpen)

	// Winning bid is still there
	stored, err := s.workflow.getBid(s.ctx, bid.ID)
	require.Nil(s.T(), err)
	require.True(s.T(), amount("30000").Equal(stored.Amount))
}

func (s *WorkflowTestSuite) TestSelectWinner() {
	tender := s.createTender("50000")
	winning := s.placeBid(tender.ID, alice, "30000")
	losing := s.placeBid(tender.ID, bob, "45000")

	_, err := s.workflow.SelectWinner(s.ctx, alice, &SelectWinnerRequest{TenderId: tender.ID, BidId: winning.ID})
	require.ErrorIs(s.T(), err, workflow.ErrForbidden)

	tender, err = s.workflow.SelectWinner(s.ctx, creator, &SelectWinnerRequest{TenderId: tender.ID, BidId: winning.ID})
	require.Nil(s.T(), err)
	require.Equal(s.T(), model.TenderStatusInProgress, tender.Status)
	require.Equal(s.T(), alice, *tender.Winner)
	require.True(s.T(), amount("30000").Equal(*tender.FinalAmount))

	// Losing bids are gone, the winning one is frozen
	bids, err := s.workflow.ListBids(s.ctx, tender.ID)
	require.Nil(s.T(), err)
	require.Len(s.T(), bids, 1)
	require.Equal(s.T(), winning.ID, bids[0].ID)

	_, err = s.workflow.UpdateBid(s.ctx, alice, &UpdateBidRequest{BidId: winning.ID, Amount: amount("31000")})
	require.ErrorIs(s.T(), err, workflow.ErrNotOpen)
	require.ErrorIs(s.T(), s.workflow.WithdrawBid(s.ctx, alice, &WithdrawBidRequest{BidId: winning.ID}), workflow.ErrNotOpen)
	require.ErrorIs(s.T(), s.workflow.WithdrawBid(s.ctx, bob, &WithdrawBidRequest{BidId: losing.ID}), workflow.ErrNotFound)

	_, err = s.workflow.PlaceBid(s.ctx, bob, &PlaceBidRequest{TenderId: tender.ID, Amount: amount("100")})
	require.ErrorIs(s.T(), err, workflow.ErrNotOpen)

	_, err = s.workflow.SelectWinner(s.ctx, creator, &SelectWinnerRequest{TenderId: tender.ID, BidId: winning.ID})
	require.ErrorIs(s.T(), err, workflow.ErrNotOpen)
}

func (s *WorkflowTestSuite) TestSelectBidOfAnotherTender() {
	first := s.createTender("100")
	second := s.createTender("100")
	bid := s.placeBid(first.ID, alice, "50")

	_, err := s.workflow.SelectWinner(s.ctx, creator, &SelectWinnerRequest{TenderId: second.ID, BidId: bid.ID})
	require.ErrorIs(s.T(), err, workflow.ErrValidation)
}

func (s *WorkflowTestSuite) TestInternalSubmissionNeedsRegistration() {
	tender := s.createTender("50000")
	bid := s.placeBid(tender.ID, alice, "30000")
	s.placeBid(tender.ID, bob, "45000")

	tender, err := s.workflow.SelectWinner(s.ctx, creator, &SelectWinnerRequest{TenderId: tender.ID, BidId: bid.ID})
	require.Nil(s.T(), err)
	require.Equal(s.T(), model.TenderStatusInProgress, tender.Status)
	require.True(s.T(), amount("30000").Equal(*tender.FinalAmount))

	req := &SubmitWorkRequest{TenderId: tender.ID, Submission: "done", SettlementType: "internal"}
	_, err = s.workflow.SubmitWork(s.ctx, alice, req)
	require.ErrorIs(s.T(), err, workflow.ErrNotEligible)

	// Nothing persisted
	tender, err = s.workflow.GetTender(s.ctx, tender.ID)
	require.Nil(s.T(), err)
	require.Nil(s.T(), tender.WorkSubmission)

	_, err = s.tracker.Register(s.ctx, alice)
	require.Nil(s.T(), err)

	tender, err = s.workflow.SubmitWork(s.ctx, alice, req)
	require.Nil(s.T(), err)
	require.Equal(s.T(), "done", *tender.WorkSubmission)
	require.Equal(s.T(), model.SettlementTypeInternal, tender.SettlementType())
	require.NotNil(s.T(), tender.SubmittedAt)
}

func (s *WorkflowTestSuite) TestInternalPayoutAddressNeedsRegistration() {
	tender := s.createTender("100")
	bid := s.placeBid(tender.ID, alice, "50")
	_, err := s.workflow.SelectWinner(s.ctx, creator, &SelectWinnerRequest{TenderId: tender.ID, BidId: bid.ID})
	require.Nil(s.T(), err)
	_, err = s.tracker.Register(s.ctx, alice)
	require.Nil(s.T(), err)

	_, err = s.workflow.SubmitWork(s.ctx, alice, &SubmitWorkRequest{
		TenderId:       tender.ID,
		Submission:     "done",
		SettlementType: "internal",
		PayoutAddress:  "alice-treasury",
	})
	require.ErrorIs(s.T(), err, workflow.ErrRecipientNotEligible)
}

func (s *WorkflowTestSuite) TestSubmitWorkOnce() {
	tender := s.awarded("")

	_, err := s.workflow.SubmitWork(s.ctx, alice, &SubmitWorkRequest{TenderId: tender.ID, Submission: "v2"})
	require.ErrorIs(s.T(), err, workflow.ErrWorkAlreadySubmitted)

	tender, err = s.workflow.GetTender(s.ctx, tender.ID)
	require.Nil(s.T(), err)
	require.Equal(s.T(), "https://example.com/report.pdf", *tender.WorkSubmission)
}

func (s *WorkflowTestSuite) TestSubmitWorkRules() {
	tender := s.createTender("100")
	_, err := s.workflow.SubmitWork(s.ctx, alice, &SubmitWorkRequest{TenderId: tender.ID, Submission: "x"})
	require.ErrorIs(s.T(), err, workflow.ErrNotInProgress)

	bid := s.placeBid(tender.ID, alice, "50")
	_, err = s.workflow.SelectWinner(s.ctx, creator, &SelectWinnerRequest{TenderId: tender.ID, BidId: bid.ID})
	require.Nil(s.T(), err)

	_, err = s.workflow.SubmitWork(s.ctx, bob, &SubmitWorkRequest{TenderId: tender.ID, Submission: "x"})
	require.ErrorIs(s.T(), err, workflow.ErrForbidden)

	_, err = s.workflow.SubmitWork(s.ctx, alice, &SubmitWorkRequest{TenderId: tender.ID, Submission: "x", SettlementType: "cash"})
	require.ErrorIs(s.T(), err, workflow.ErrValidation)
}

func (s *WorkflowTestSuite) TestFinalizePayment() {
	tender := s.awarded("")

	tender, result, err := s.workflow.FinalizePayment(s.ctx, creator, &FinalizePaymentRequest{TenderId: tender.ID}, nil)
	require.Nil(s.T(), err)
	require.True(s.T(), result.Success)
	require.Equal(s.T(), model.TenderStatusPaid, tender.Status)
	require.Equal(s.T(), result.Reference, *tender.SettlementReference)
	require.NotNil(s.T(), tender.PaidAt)

	require.Equal(s.T(), []settlement.TransferRequest{{
		Sender:    creator,
		Recipient: alice,
		Amount:    30_000_000_000,
		Kind:      model.SettlementTypeExternal,
	}}, s.settler.requests)
	require.Equal(s.T(), []string{"tender:transfer:external/" + result.Reference}, s.history.records)

	winner, err := s.parties.Find(s.ctx, alice)
	require.Nil(s.T(), err)
	require.Equal(s.T(), 1, winner.TendersWon)

	// Terminal
	_, _, err = s.workflow.FinalizePayment(s.ctx, creator, &FinalizePaymentRequest{TenderId: tender.ID}, nil)
	require.ErrorIs(s.T(), err, workflow.ErrInvalidState)
	require.Equal(s.T(), 1, s.settler.calls())
}

func (s *WorkflowTestSuite) TestFinalizeRules() {
	tender := s.createTender("100")
	_, _, err := s.workflow.FinalizePayment(s.ctx, creator, &FinalizePaymentRequest{TenderId: tender.ID}, nil)
	require.ErrorIs(s.T(), err, workflow.ErrInvalidState)

	bid := s.placeBid(tender.ID, alice, "50")
	_, err = s.workflow.SelectWinner(s.ctx, creator, &SelectWinnerRequest{TenderId: tender.ID, BidId: bid.ID})
	require.Nil(s.T(), err)

	_, _, err = s.workflow.FinalizePayment(s.ctx, creator, &FinalizePaymentRequest{TenderId: tender.ID}, nil)
	require.ErrorIs(s.T(), err, workflow.ErrNoWorkSubmission)

	_, _, err = s.workflow.FinalizePayment(s.ctx, alice, &FinalizePaymentRequest{TenderId: tender.ID}, nil)
	require.ErrorIs(s.T(), err, workflow.ErrForbidden)
	require.Zero(s.T(), s.settler.calls())
}

func (s *WorkflowTestSuite) TestFinalizeInternalNeedsBothRegistered() {
	_, err := s.tracker.Register(s.ctx, alice)
	require.Nil(s.T(), err)
	tender := s.awarded("internal")

	_, _, err = s.workflow.FinalizePayment(s.ctx, creator, &FinalizePaymentRequest{TenderId: tender.ID}, nil)
	require.ErrorIs(s.T(), err, workflow.ErrNotEligible)
	require.Zero(s.T(), s.settler.calls())

	_, err = s.tracker.Register(s.ctx, creator)
	require.Nil(s.T(), err)

	tender, result, err := s.workflow.FinalizePayment(s.ctx, creator, &FinalizePaymentRequest{TenderId: tender.ID}, nil)
	require.Nil(s.T(), err)
	require.Equal(s.T(), model.SettlementTypeInternal, result.Kind)
	require.Equal(s.T(), model.TenderStatusPaid, tender.Status)
	require.Equal(s.T(), []string{"tender:transfer:internal/" + result.Reference}, s.history.records)
}

func (s *WorkflowTestSuite) TestFailedSettlementLeavesTenderInProgress() {
	tender := s.awarded("")
	s.settler.fail = settlement.ErrSettlementExpired

	_, result, err := s.workflow.FinalizePayment(s.ctx, creator, &FinalizePaymentRequest{TenderId: tender.ID}, nil)
	require.ErrorIs(s.T(), err, settlement.ErrSettlementExpired)
	require.False(s.T(), result.Success)
	require.True(s.T(), workflow.IsRetryable(err))

	tender, err = s.workflow.GetTender(s.ctx, tender.ID)
	require.Nil(s.T(), err)
	require.Equal(s.T(), model.TenderStatusInProgress, tender.Status)
	require.Nil(s.T(), tender.SettlementReference)
	require.Empty(s.T(), s.history.records)

	// Retry succeeds
	s.settler.fail = nil
	tender, _, err = s.workflow.FinalizePayment(s.ctx, creator, &FinalizePaymentRequest{TenderId: tender.ID}, nil)
	require.Nil(s.T(), err)
	require.Equal(s.T(), model.TenderStatusPaid, tender.Status)
}

func (s *WorkflowTestSuite) TestCancelledFinalizeLeavesTenderInProgress() {
	tender := s.awarded("")

	// Caller goes away while the settlement is in flight
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	s.settler.hook = cancel

	_, _, err := s.workflow.FinalizePayment(ctx, creator, &FinalizePaymentRequest{TenderId: tender.ID}, nil)
	require.ErrorIs(s.T(), err, settlement.ErrConfirmationUnknown)

	tender, err = s.workflow.GetTender(s.ctx, tender.ID)
	require.Nil(s.T(), err)
	require.Equal(s.T(), model.TenderStatusInProgress, tender.Status)
}

func (s *WorkflowTestSuite) TestConcurrentFinalize() {
	tender := s.awarded("")

	// Both payments reach the settler before either commits
	s.settler.barrier = &sync.WaitGroup{}
	s.settler.barrier.Add(2)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, _, err := s.workflow.FinalizePayment(s.ctx, creator, &FinalizePaymentRequest{TenderId: tender.ID}, nil)
			errs <- err
		}()
	}

	var succeeded, finalized int
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, workflow.ErrAlreadyFinalized):
			require.False(s.T(), workflow.IsRetryable(err))
			finalized++
		default:
			s.T().Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(s.T(), 1, succeeded)
	require.Equal(s.T(), 1, finalized)
	require.Equal(s.T(), 2, s.settler.calls())

	// Both settlements are in the audit log
	require.Len(s.T(), s.history.records, 2)

	tender, err := s.workflow.GetTender(s.ctx, tender.ID)
	require.Nil(s.T(), err)
	require.Equal(s.T(), model.TenderStatusPaid, tender.Status)

	winner, err := s.parties.Find(s.ctx, alice)
	require.Nil(s.T(), err)
	require.Equal(s.T(), 1, winner.TendersWon)
}
