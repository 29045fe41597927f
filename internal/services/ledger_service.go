package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carteira/internal/aggregate"
	"carteira/internal/amqp"
	"carteira/internal/cache"
	"carteira/internal/core"
	"carteira/internal/entitlement"
	"carteira/internal/installment"
	"carteira/internal/ledger"
	"carteira/internal/log"
)

// Submission is one user-entered ledger entry. Amount is the positive
// magnitude; the sign follows Type. Installments > 1 splits a card expense
// into a monthly group; 0 means a single record.
type Submission struct {
	Date          core.Date
	Description   string
	Amount        core.Money
	Category      string
	Type          core.TransactionType
	PaymentMethod core.PaymentMethod
	CreditCardID  string
	Installments  int
}

// LedgerService commits and reads a user's ledger records.
type LedgerService struct {
	store     ledger.Store
	resolver  capabilityResolver
	publisher Publisher
	summaries cache.Cache[aggregate.Summary]
	logger    *log.Logger
	now       func() time.Time
}

func NewLedgerService(store ledger.Store, resolver *entitlement.Resolver, publisher Publisher, summaries cache.Cache[aggregate.Summary], logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Default(log.ComponentLedger)
	}
	return &LedgerService{
		store:     store,
		resolver:  resolver,
		publisher: publisher,
		summaries: summaries,
		logger:    logger.WithComponent(log.ComponentLedger),
		now:       time.Now,
	}
}

// Submit validates and commits s for userID. Installment purchases are
// expanded and stored as one all-or-nothing group.
func (s *LedgerService) Submit(ctx context.Context, userID string, sub Submission) (core.GroupHandle, error) {
	if _, err := require(ctx, s.resolver, userID, entitlement.FeatureTransactions); err != nil {
		return core.GroupHandle{}, err
	}
	if sub.Installments < 0 {
		return core.GroupHandle{}, fmt.Errorf("%w: %w: %d", core.ErrValidation, core.ErrInvalidInstallmentCount, sub.Installments)
	}
	if sub.Installments > 1 && sub.PaymentMethod == "" {
		sub.PaymentMethod = core.Card
	}
	if sub.PaymentMethod == core.Card {
		if err := s.checkCardOwner(ctx, userID, sub.CreditCardID); err != nil {
			return core.GroupHandle{}, err
		}
	}

	records, err := s.records(userID, sub)
	if err != nil {
		return core.GroupHandle{}, err
	}

	h, err := s.store.CreateGroup(ctx, records)
	if err != nil {
		return core.GroupHandle{}, fmt.Errorf("commit ledger records: %w", err)
	}

	var total core.Money
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	s.logger.InfoContext(ctx, "Ledger records committed",
		log.NewFields().WithGroup(userID, h.GroupID, len(h.IDs), total.Cents).ToSlice()...)

	s.afterCommit(ctx, amqp.NewCommitEvent(userID, h.GroupID, h.IDs))
	return h, nil
}

func (s *LedgerService) records(userID string, sub Submission) ([]core.Transaction, error) {
	if sub.Amount.Cents <= 0 {
		return nil, core.Invalid(core.ErrInvalidAmount)
	}
	if sub.Installments > 1 {
		if sub.Type != core.Expense {
			return nil, fmt.Errorf("%w: %w: only expenses can be split", core.ErrValidation, core.ErrInvalidInstallmentCount)
		}
		g, err := installment.Expand(installment.Request{
			OwnerID:       userID,
			Total:         sub.Amount,
			Description:   sub.Description,
			Category:      sub.Category,
			PaymentMethod: sub.PaymentMethod,
			CreditCardID:  sub.CreditCardID,
			Count:         sub.Installments,
			FirstDate:     sub.Date,
		}, s.now())
		if err != nil {
			return nil, err
		}
		return g.Members, nil
	}

	amount := sub.Amount
	if sub.Type == core.Expense {
		amount = amount.Neg()
	}
	date := sub.Date
	if date.IsZero() {
		date = core.DateOf(s.now())
	}
	return []core.Transaction{{
		OwnerID:          userID,
		Date:             date,
		Description:      strings.TrimSpace(sub.Description),
		Amount:           amount,
		Category:         strings.TrimSpace(sub.Category),
		Type:             sub.Type,
		PaymentMethod:    sub.PaymentMethod,
		CreditCardID:     sub.CreditCardID,
		InstallmentIndex: 1,
		InstallmentCount: 1,
	}}, nil
}

func (s *LedgerService) checkCardOwner(ctx context.Context, userID, cardID string) error {
	if strings.TrimSpace(cardID) == "" {
		return core.Invalid(core.ErrMissingCreditCard)
	}
	cards, err := s.store.ListCreditCards(ctx, userID)
	if err != nil {
		return fmt.Errorf("list credit cards: %w", err)
	}
	for _, c := range cards {
		if c.ID == cardID {
			return nil
		}
	}
	return ledger.NotFound("credit card", cardID)
}

// afterCommit runs the post-commit side effects. The commit is already
// durable, so failures here are only logged.
func (s *LedgerService) afterCommit(ctx context.Context, ev *amqp.LedgerEvent) {
	if s.summaries != nil {
		s.summaries.Delete(ev.OwnerID)
	}
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping ledger event", log.FieldEventType, ev.Type)
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		level := s.logger.ErrorContext
		if errors.Is(err, amqp.ErrCircuitOpen) {
			level = s.logger.WarnContext
		}
		level(ctx, "Failed to publish ledger event",
			log.FieldEventType, ev.Type,
			log.FieldOwnerID, ev.OwnerID,
			log.FieldGroupID, ev.GroupID,
			log.FieldError, err)
	}
}

func (s *LedgerService) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	if _, err := require(ctx, s.resolver, userID, entitlement.FeatureTransactions); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, userID)
}

// GetGroup reads an installment group back and re-checks its invariants.
func (s *LedgerService) GetGroup(ctx context.Context, userID, groupID string) (core.InstallmentGroup, error) {
	if _, err := require(ctx, s.resolver, userID, entitlement.FeatureTransactions); err != nil {
		return core.InstallmentGroup{}, err
	}
	g, err := s.store.GetGroup(ctx, userID, groupID)
	if err != nil {
		return core.InstallmentGroup{}, err
	}
	if err := g.Validate(); err != nil {
		s.logger.ErrorContext(ctx, "Stored installment group is inconsistent",
			log.FieldOwnerID, userID, log.FieldGroupID, groupID, log.FieldError, err)
		return core.InstallmentGroup{}, fmt.Errorf("group %s: %w", groupID, err)
	}
	return g, nil
}

// AddCreditCard registers a card within the role's card quota.
func (s *LedgerService) AddCreditCard(ctx context.Context, userID string, card core.CreditCard) (string, error) {
	caps, err := require(ctx, s.resolver, userID, entitlement.FeatureCreditCards)
	if err != nil {
		return "", err
	}
	owned, err := s.store.ListCreditCards(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("list credit cards: %w", err)
	}
	if !caps.CanAddCreditCard(len(owned)) {
		return "", fmt.Errorf("%w: %w: role %s allows %d", core.ErrForbidden, ErrCardQuota, caps.Role, caps.CreditCardCap)
	}
	card.OwnerID = userID
	id, err := s.store.CreateCreditCard(ctx, card)
	if err != nil {
		return "", fmt.Errorf("create credit card: %w", err)
	}
	if s.summaries != nil {
		s.summaries.Delete(userID)
	}
	s.logger.InfoContext(ctx, "Credit card added", log.FieldOwnerID, userID, "card_id", id)
	return id, nil
}

func (s *LedgerService) ListCreditCards(ctx context.Context, userID string) ([]core.CreditCard, error) {
	if _, err := require(ctx, s.resolver, userID, entitlement.FeatureCreditCards); err != nil {
		return nil, err
	}
	return s.store.ListCreditCards(ctx, userID)
}

func (s *LedgerService) AddInvestment(ctx context.Context, userID string, inv core.Investment) (string, error) {
	if _, err := require(ctx, s.resolver, userID, entitlement.FeatureInvestments); err != nil {
		return "", err
	}
	inv.OwnerID = userID
	id, err := s.store.CreateInvestment(ctx, inv)
	if err != nil {
		return "", fmt.Errorf("create investment: %w", err)
	}
	if s.summaries != nil {
		s.summaries.Delete(userID)
	}
	s.logger.InfoContext(ctx, "Investment added", log.FieldOwnerID, userID, "investment_id", id)
	return id, nil
}

func (s *LedgerService) ListInvestments(ctx context.Context, userID string) ([]core.Investment, error) {
	if _, err := require(ctx, s.resolver, userID, entitlement.FeatureInvestments); err != nil {
		return nil, err
	}
	return s.store.ListInvestments(ctx, userID)
}
