// Package treasury orchestrates the economic operations of the credit
// system: buying and redeeming credits against the reserve, charging
// listens, recording ratings and withdrawing reserve surplus.
//
// Every operation runs under a single mutex, catalog curation included,
// so operations are strictly serialized. That serialization is the
// concurrency model: no operation ever observes another operation's
// partial state, and no song can appear, move or vanish while a charge
// is in flight.
package treasury

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/blef1o/tunebank/internal/app/authority"
	"github.com/blef1o/tunebank/internal/app/domain/journal"
	"github.com/blef1o/tunebank/internal/app/domain/listener"
	"github.com/blef1o/tunebank/internal/app/domain/money"
	"github.com/blef1o/tunebank/internal/app/ledger"
	"github.com/blef1o/tunebank/internal/app/metrics"
	"github.com/blef1o/tunebank/internal/app/services/activity"
	"github.com/blef1o/tunebank/internal/app/services/catalog"
	"github.com/blef1o/tunebank/internal/app/services/exchange"
	"github.com/blef1o/tunebank/internal/app/storage"
	"github.com/blef1o/tunebank/pkg/logger"
)

var (
	// ErrInvalidQuantity is returned for nil, zero or negative credit
	// quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInsufficientPayment is returned when the payment attached to a
	// buy does not exactly cover the cost.
	ErrInsufficientPayment = errors.New("payment does not match cost")
	// ErrInsufficientSupply is returned when the system account does not
	// hold enough credits to sell.
	ErrInsufficientSupply = errors.New("insufficient credit supply")
	// ErrInsufficientBalance is returned when the caller's credit balance
	// cannot cover the operation.
	ErrInsufficientBalance = errors.New("insufficient credit balance")
	// ErrInsufficientReserve is returned when the reserve cannot cover a
	// redemption.
	ErrInsufficientReserve = errors.New("insufficient reserve")
	// ErrSongUnavailable is returned when the requested slot holds no
	// song.
	ErrSongUnavailable = errors.New("song unavailable")
	// ErrAlreadyRated is returned when an account rates a song slot a
	// second time.
	ErrAlreadyRated = errors.New("song already rated by this account")
	// ErrTransferFailed is returned when moving credits or collecting
	// payment fails for a reason other than a pre-checked balance.
	ErrTransferFailed = errors.New("transfer failed")
	// ErrPayoutFailed is returned when paying out of the reserve fails
	// after the credit leg already ran; the credit leg is rolled back.
	ErrPayoutFailed = errors.New("payout failed")
)

// Service exposes the economic operations. It owns no balances itself;
// credits live in the Ledger, reserve funds in the Reserve, and the
// system account acts as counterparty to every credit movement.
type Service struct {
	mu sync.Mutex

	system  string
	catalog *catalog.Service
	tracker *activity.Tracker
	credits ledger.Ledger
	reserve ledger.Reserve
	auth    authority.Authority
	journal storage.JournalStore
	log     *logger.Logger
}

// New constructs the treasury service. journal may be nil, in which
// case no operation records are kept.
func New(system string, cat *catalog.Service, tracker *activity.Tracker, credits ledger.Ledger, reserve ledger.Reserve, auth authority.Authority, journal storage.JournalStore, log *logger.Logger) (*Service, error) {
	if system == "" {
		return nil, errors.New("system account is required")
	}
	if cat == nil || tracker == nil || credits == nil || reserve == nil || auth == nil {
		return nil, errors.New("catalog, tracker, ledger, reserve and authority are required")
	}
	if log == nil {
		log = logger.NewDefault("treasury")
	}
	return &Service{
		system:  system,
		catalog: cat,
		tracker: tracker,
		credits: credits,
		reserve: reserve,
		auth:    auth,
		journal: journal,
		log:     log,
	}, nil
}

// SystemAccount returns the account holding unsold credits.
func (s *Service) SystemAccount() string { return s.system }

// Buy sells credits whole-credits at a time. payment must exactly equal
// the reserve cost of credits; there is no overpayment refund.
func (s *Service) Buy(ctx context.Context, account string, creditsWanted, payment *big.Int) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.RecordOperation("buy", err) }()

	if !isPositive(creditsWanted) {
		return ErrInvalidQuantity
	}
	cost, err := exchange.ToReserveUnits(creditsWanted)
	if err != nil {
		return err
	}
	if payment == nil || payment.Cmp(cost) != 0 {
		return ErrInsufficientPayment
	}

	units, err := exchange.ToUnits(creditsWanted)
	if err != nil {
		return err
	}
	if s.credits.BalanceOf(s.system).Cmp(units) < 0 {
		return ErrInsufficientSupply
	}

	if err := s.reserve.Collect(account, cost); err != nil {
		return fmt.Errorf("%w: collect payment: %v", ErrTransferFailed, err)
	}
	if err := s.credits.Transfer(s.system, account, units); err != nil {
		if rbErr := s.reserve.Pay(account, cost); rbErr != nil {
			s.log.WithError(rbErr).WithField("account", account).
				Error("failed to return payment after aborted buy")
		}
		return fmt.Errorf("%w: deliver credits: %v", ErrTransferFailed, err)
	}

	s.tracker.AddPurchased(account, creditsWanted)
	s.record(ctx, journal.Entry{
		Kind:     journal.KindBuy,
		Account:  account,
		SongSlot: -1,
		Credits:  money.Clone(units),
		Reserve:  cost,
	})
	metrics.RecordCreditsSold(approxFloat(creditsWanted))
	s.log.WithField("account", account).
		WithField("credits", creditsWanted.String()).
		Info("credits sold")
	return nil
}

// Redeem converts whole credits back into reserve funds. The credit leg
// runs first; if the payout then fails the credits are returned.
func (s *Service) Redeem(ctx context.Context, account string, creditsBack *big.Int) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.RecordOperation("redeem", err) }()

	if !isPositive(creditsBack) {
		return ErrInvalidQuantity
	}
	units, err := exchange.ToUnits(creditsBack)
	if err != nil {
		return err
	}
	payout, err := exchange.ToReserveUnits(creditsBack)
	if err != nil {
		return err
	}

	if s.credits.BalanceOf(account).Cmp(units) < 0 {
		return ErrInsufficientBalance
	}
	if s.reserve.Balance().Cmp(payout) < 0 {
		return ErrInsufficientReserve
	}

	if err := s.credits.Transfer(account, s.system, units); err != nil {
		return fmt.Errorf("%w: reclaim credits: %v", ErrTransferFailed, err)
	}
	if err := s.reserve.Pay(account, payout); err != nil {
		if rbErr := s.credits.Transfer(s.system, account, units); rbErr != nil {
			s.log.WithError(rbErr).WithField("account", account).
				Error("failed to return credits after aborted redeem")
		}
		return fmt.Errorf("%w: %v", ErrPayoutFailed, err)
	}

	s.record(ctx, journal.Entry{
		Kind:     journal.KindRedeem,
		Account:  account,
		SongSlot: -1,
		Credits:  money.Clone(units),
		Reserve:  payout,
	})
	metrics.RecordCreditsRedeemed(approxFloat(creditsBack))
	s.log.WithField("account", account).
		WithField("credits", creditsBack.String()).
		Info("credits redeemed")
	return nil
}

// Listen charges the song's current value, always appends to the
// caller's listen history, and counts the listener toward the song's
// value curve only on the account's first listen of the slot.
func (s *Service) Listen(ctx context.Context, account string, slot int) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.RecordOperation("listen", err) }()

	sng, err := s.catalog.Get(slot)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSongUnavailable, err)
	}
	price, err := s.catalog.Value(slot)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSongUnavailable, err)
	}

	if s.credits.BalanceOf(account).Cmp(price) < 0 {
		return ErrInsufficientBalance
	}
	if err := s.credits.Transfer(account, s.system, price); err != nil {
		return fmt.Errorf("%w: charge listen: %v", ErrTransferFailed, err)
	}

	if !s.tracker.HasListened(slot, account) {
		if err := s.catalog.RecordListen(slot); err != nil {
			return fmt.Errorf("%w: %v", ErrSongUnavailable, err)
		}
		s.tracker.MarkListened(slot, account)
	}
	s.tracker.AppendHistory(account, sng.Name)

	s.record(ctx, journal.Entry{
		Kind:     journal.KindListen,
		Account:  account,
		SongSlot: slot,
		SongName: sng.Name,
		Credits:  price,
	})
	return nil
}

// Rate records a rating between 1 and 10. Each account may rate a given
// slot once; listening first is not required.
func (s *Service) Rate(ctx context.Context, account string, slot int, rate int64) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.RecordOperation("rate", err) }()

	if rate < 1 || rate > 10 {
		return catalog.ErrInvalidRating
	}
	sng, err := s.catalog.Get(slot)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSongUnavailable, err)
	}
	if s.tracker.HasRated(slot, account) {
		return ErrAlreadyRated
	}
	if err := s.catalog.RecordRating(slot, rate); err != nil {
		return err
	}
	s.tracker.MarkRated(slot, account)

	s.record(ctx, journal.Entry{
		Kind:     journal.KindRating,
		Account:  account,
		SongSlot: slot,
		SongName: sng.Name,
	})
	return nil
}

// AddSong adds a song to the catalog, returning its slot. Restricted to
// the authority. Curation runs under the same mutex as the economic
// operations so a new slot never appears mid-charge.
func (s *Service) AddSong(caller, name, text string, lengthSeconds, baseValue int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.AddSong(caller, name, text, lengthSeconds, baseValue)
}

// RemoveSong removes the song at the slot by swap-compaction. Restricted
// to the authority and serialized with the economic operations: a listen
// in flight completes against the song it priced before any compaction
// moves another song into the slot.
func (s *Service) RemoveSong(caller string, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.RemoveSong(caller, slot)
}

// Withdraw pays the reserve surplus to the authority. The surplus is
// whatever the reserve holds beyond full backing of every credit in
// circulation; when there is none the call succeeds without moving
// funds.
func (s *Service) Withdraw(ctx context.Context, caller string) (paid *big.Int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.RecordOperation("withdraw", err) }()

	if err := s.auth.Require(caller); err != nil {
		return nil, err
	}

	surplus, err := s.surplusLocked()
	if err != nil {
		return nil, err
	}
	if surplus.Sign() == 0 {
		return money.Zero(), nil
	}

	if err := s.reserve.Pay(caller, surplus); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayoutFailed, err)
	}

	s.record(ctx, journal.Entry{
		Kind:     journal.KindWithdraw,
		Account:  caller,
		SongSlot: -1,
		Reserve:  money.Clone(surplus),
	})
	s.log.WithField("account", caller).
		WithField("surplus", surplus.String()).
		Info("reserve surplus withdrawn")
	return surplus, nil
}

// Profile returns a snapshot of an account's purchase total and listen
// history.
func (s *Service) Profile(account string) listener.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Profile(account)
}

// History returns an account's listen history, oldest first.
func (s *Service) History(account string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.History(account)
}

// Stats is a point-in-time snapshot of the treasury position.
type Stats struct {
	TotalSupply        *big.Int `json:"total_supply"`
	SystemBalance      *big.Int `json:"system_balance"`
	CreditsOutstanding *big.Int `json:"credits_outstanding"`
	ReserveBalance     *big.Int `json:"reserve_balance"`
	Surplus            *big.Int `json:"surplus"`
	Songs              int      `json:"songs"`
}

// Snapshot reports the current treasury position.
func (s *Service) Snapshot() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outstanding, err := s.outstandingLocked()
	if err != nil {
		return Stats{}, err
	}
	surplus, err := s.surplusLocked()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalSupply:        s.credits.TotalSupply(),
		SystemBalance:      s.credits.BalanceOf(s.system),
		CreditsOutstanding: outstanding,
		ReserveBalance:     s.reserve.Balance(),
		Surplus:            surplus,
		Songs:              s.catalog.Count(),
	}, nil
}

// outstandingLocked is the credit volume in circulation outside the
// system account. Credit units and reserve units are 1:1, so this is
// also the reserve amount owed to holders.
func (s *Service) outstandingLocked() (*big.Int, error) {
	return money.Sub(s.credits.TotalSupply(), s.credits.BalanceOf(s.system))
}

func (s *Service) surplusLocked() (*big.Int, error) {
	owed, err := s.outstandingLocked()
	if err != nil {
		return nil, err
	}
	surplus, err := money.Sub(s.reserve.Balance(), owed)
	if err != nil {
		return nil, fmt.Errorf("%w: reserve no longer covers circulation", ErrInsufficientReserve)
	}
	return surplus, nil
}

// record appends a journal entry. The journal is reporting-only, so a
// failed append is logged and the operation still succeeds.
func (s *Service) record(ctx context.Context, entry journal.Entry) {
	if s.journal == nil {
		return
	}
	if _, err := s.journal.AppendEntry(ctx, entry); err != nil {
		s.log.WithError(err).WithField("kind", string(entry.Kind)).
			Warn("journal append failed")
	}
}

func isPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0 && money.IsValid(v)
}

// approxFloat is for metrics only; precision loss above 2^53 is fine
// there.
func approxFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
