package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"carteira/internal/advice"
	"carteira/internal/aggregate"
	"carteira/internal/cache"
	"carteira/internal/core"
	"carteira/internal/entitlement"
	"carteira/internal/ledger"
	"carteira/internal/log"
)

// snapshotReader is what the analysis side reads from the store.
type snapshotReader interface {
	ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error)
	ListCreditCards(ctx context.Context, ownerID string) ([]core.CreditCard, error)
	ListInvestments(ctx context.Context, ownerID string) ([]core.Investment, error)
}

var _ snapshotReader = (ledger.Store)(nil)

type snapshot struct {
	txs         []core.Transaction
	cards       []core.CreditCard
	investments []core.Investment
}

// AnalysisService serves the dashboard summary and AI advice.
type AnalysisService struct {
	store     snapshotReader
	resolver  capabilityResolver
	advisor   advice.Advisor
	summaries cache.Cache[aggregate.Summary]
	logger    *log.Logger
	now       func() time.Time
}

// NewAnalysisService wires the read side. advisor may be nil, in which case
// Analyze fails with ErrAdviceUnavailable.
func NewAnalysisService(store ledger.Store, resolver *entitlement.Resolver, advisor advice.Advisor, summaries cache.Cache[aggregate.Summary], logger *log.Logger) *AnalysisService {
	if logger == nil {
		logger = log.Default(log.ComponentAnalysis)
	}
	return &AnalysisService{
		store:     store,
		resolver:  resolver,
		advisor:   advisor,
		summaries: summaries,
		logger:    logger.WithComponent(log.ComponentAnalysis),
		now:       time.Now,
	}
}

func (s *AnalysisService) load(ctx context.Context, userID string, withCards bool) (snapshot, error) {
	var snap snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.txs, err = s.store.ListTransactions(ctx, userID)
		return err
	})
	if withCards {
		g.Go(func() (err error) {
			snap.cards, err = s.store.ListCreditCards(ctx, userID)
			return err
		})
	}
	g.Go(func() (err error) {
		snap.investments, err = s.store.ListInvestments(ctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, fmt.Errorf("load ledger snapshot: %w", err)
	}
	return snap, nil
}

// Dashboard returns the monthly series and net worth of userID. Results are
// cached per user until the next commit or the cache TTL.
func (s *AnalysisService) Dashboard(ctx context.Context, userID string) (aggregate.Summary, error) {
	if _, err := require(ctx, s.resolver, userID, entitlement.FeatureDashboard); err != nil {
		return aggregate.Summary{}, err
	}
	if s.summaries != nil {
		if sum, ok := s.summaries.Get(userID); ok {
			return sum, nil
		}
	}
	snap, err := s.load(ctx, userID, true)
	if err != nil {
		return aggregate.Summary{}, err
	}
	sum := aggregate.Summarize(snap.txs, snap.cards, snap.investments, s.now())
	if s.summaries != nil {
		s.summaries.Set(userID, sum)
	}
	return sum, nil
}

// Analyze asks the advisor about userID's ledger. At least
// aggregate.MinTransactionsForAnalysis transactions are required.
func (s *AnalysisService) Analyze(ctx context.Context, userID string) (advice.Result, error) {
	if _, err := require(ctx, s.resolver, userID, entitlement.FeatureAIAnalysis); err != nil {
		return advice.Result{}, err
	}
	snap, err := s.load(ctx, userID, false)
	if err != nil {
		return advice.Result{}, err
	}
	if !aggregate.CanAnalyze(snap.txs) {
		return advice.Result{}, fmt.Errorf("%w: %w: have %d, need %d",
			core.ErrPreconditionFailed, ErrTooFewTransactions, len(snap.txs), aggregate.MinTransactionsForAnalysis)
	}
	if s.advisor == nil {
		return advice.Result{}, ErrAdviceUnavailable
	}

	start := s.now()
	res, err := s.advisor.Analyze(ctx, advice.BuildRequest(snap.txs, snap.investments))
	if err != nil {
		s.logger.ErrorContext(ctx, "Advice request failed", log.FieldOwnerID, userID, log.FieldError, err)
		return advice.Result{}, fmt.Errorf("analyze: %w", err)
	}
	s.logger.InfoContext(ctx, "Advice generated",
		log.FieldOwnerID, userID,
		log.FieldRecordCount, len(snap.txs),
		log.FieldDuration, time.Since(start).Milliseconds())
	return res, nil
}
