package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/rxtech-lab/contractgen/internal/codeblock"
	"github.com/rxtech-lab/contractgen/internal/metrics"
	"github.com/rxtech-lab/contractgen/internal/models"
	"go.uber.org/zap"
)

// Handoff carries the generated contract from the generation screen to the
// deployment screen.
type Handoff struct {
	Contract string       `json:"contract"`
	Chain    models.Chain `json:"chain"`
}

// DeploymentDeps are the collaborators of a deployment session.
type DeploymentDeps struct {
	Wallet WalletProvider
	Chains *ChainProviders
	Hooks  HookService

	Clock        clock.Clock
	GasInterval  time.Duration
	GasGenerator func() int

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// DeploymentSnapshot is a point in time copy of a deployment session.
type DeploymentSnapshot struct {
	ID        string              `json:"id"`
	Contract  string              `json:"contract"`
	Chain     models.Chain        `json:"chain"`
	CodeBlock codeblock.CodeBlock `json:"code_block"`
	// GasEstimate is 0 until the first poll.
	GasEstimate int                     `json:"gas_estimate"`
	Wallet      models.WalletConnection `json:"wallet"`
	DeploymentState
}

// DeploymentSession owns the deployment screen: the handed off contract, the
// gas display and the deploy state machine.
type DeploymentSession struct {
	ID string

	contract string
	chain    models.Chain

	wallet  WalletProvider
	chains  *ChainProviders
	hooks   HookService
	poller  *GasPoller
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	state  DeploymentState
	gas    int
	closed bool
}

// NewDeploymentSession opens a deployment screen. A nil handoff is a direct
// entry with no contract on the default chain. Gas polling starts immediately
// and runs until Close.
func NewDeploymentSession(id string, deps DeploymentDeps, handoff *Handoff) *DeploymentSession {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hooks := deps.Hooks
	if hooks == nil {
		hooks = NewHookService()
	}

	s := &DeploymentSession{
		ID:      id,
		chain:   models.DefaultChain,
		wallet:  deps.Wallet,
		chains:  deps.Chains,
		hooks:   hooks,
		logger:  logger.With(zap.String("deployment_id", id)),
		metrics: deps.Metrics,
		state:   newDeploymentState(),
	}
	if handoff != nil {
		s.contract = handoff.Contract
		if handoff.Chain != "" {
			s.chain = handoff.Chain
		}
	}

	s.poller = NewGasPoller(deps.Clock, deps.GasInterval, deps.GasGenerator, s.setGasEstimate)
	s.poller.Start()
	s.metrics.DeploymentSessionOpened()
	return s
}

func (s *DeploymentSession) setGasEstimate(value int) {
	s.mu.Lock()
	s.gas = value
	s.mu.Unlock()
	s.metrics.SetGasEstimate(value)
}

// Close stops gas polling. It is safe to call more than once.
func (s *DeploymentSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	// the poller callback takes mu, so stop it unlocked
	s.poller.Stop()
	s.metrics.DeploymentSessionClosed()
	s.logger.Debug("Deployment session closed")
}

func (s *DeploymentSession) Snapshot() DeploymentSnapshot {
	s.mu.Lock()
	state := s.state
	gas := s.gas
	s.mu.Unlock()

	var wallet models.WalletConnection
	if s.wallet != nil {
		wallet = s.wallet.Connection()
	}
	return DeploymentSnapshot{
		ID:              s.ID,
		Contract:        s.contract,
		Chain:           s.chain,
		CodeBlock:       codeblock.Extract(s.contract),
		GasEstimate:     gas,
		Wallet:          wallet,
		DeploymentState: state,
	}
}

// DeployResult is the final result of a deploy started with StartDeploy.
type DeployResult struct {
	Outcome models.TransactionOutcome
	Err     error
}

// deployAttempt is a deploy that passed the wallet and phase checks.
type deployAttempt struct {
	address string
	state   DeploymentState
}

// Deploy publishes the contract through the connected wallet and waits for the
// transaction to land. There is no automatic retry; calling Deploy again after
// a failure starts a new attempt.
func (s *DeploymentSession) Deploy(ctx context.Context) (models.TransactionOutcome, error) {
	attempt, err := s.begin()
	if err != nil {
		return models.TransactionOutcome{}, err
	}
	return s.run(ctx, attempt)
}

// StartDeploy runs the same checks as Deploy and returns their error at once.
// The deploy itself continues in the background; the channel receives its
// result and is then closed.
func (s *DeploymentSession) StartDeploy(ctx context.Context) (<-chan DeployResult, error) {
	attempt, err := s.begin()
	if err != nil {
		return nil, err
	}
	done := make(chan DeployResult, 1)
	go func() {
		defer close(done)
		outcome, err := s.run(ctx, attempt)
		done <- DeployResult{Outcome: outcome, Err: err}
	}()
	return done, nil
}

// begin reads the wallet connection once and moves the session to building.
func (s *DeploymentSession) begin() (deployAttempt, error) {
	var conn models.WalletConnection
	if s.wallet != nil {
		conn = s.wallet.Connection()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !conn.Connected {
		s.state, _ = reduceDeployment(s.state, noticeRaised{message: NoticeConnectWallet})
		return deployAttempt{}, ErrWalletNotConnected
	}
	if s.closed {
		return deployAttempt{}, ErrSessionClosed
	}
	next, err := s.transition(deployRequested{})
	if err != nil {
		return deployAttempt{}, err
	}
	return deployAttempt{address: conn.Address, state: next}, nil
}

func (s *DeploymentSession) run(ctx context.Context, attempt deployAttempt) (models.TransactionOutcome, error) {
	address := attempt.address
	next := attempt.state
	logger := s.logger.With(
		zap.Int("attempt", next.Attempt),
		zap.String("chain", s.chain.String()),
		zap.String("address", address),
	)
	logger.Info("Starting deployment")
	s.publish(ctx, address, next)

	provider, err := s.chains.For(s.chain)
	if err != nil {
		return s.fail(ctx, logger, address, "resolve chain provider", err)
	}

	raw, err := provider.GenerateTransaction(ctx, address, models.NewPublishPayload(s.contract))
	if err != nil {
		return s.fail(ctx, logger, address, "generate transaction", err)
	}
	if _, err := s.advance(transactionBuilt{}); err != nil {
		return s.fail(ctx, logger, address, "generate transaction", err)
	}

	signed, err := s.wallet.SignTransaction(ctx, raw)
	if err != nil {
		return s.fail(ctx, logger, address, "sign transaction", err)
	}
	if _, err := s.advance(transactionSigned{}); err != nil {
		return s.fail(ctx, logger, address, "sign transaction", err)
	}

	hash, err := provider.SubmitTransaction(ctx, signed)
	if err != nil {
		return s.fail(ctx, logger, address, "submit transaction", err)
	}
	submitted, err := s.advance(transactionSubmitted{hash: hash})
	if err != nil {
		return s.fail(ctx, logger, address, "submit transaction", err)
	}
	logger.Info("Transaction submitted", zap.String("hash", hash))
	s.publish(ctx, address, submitted)

	receipt, err := provider.WaitForTransaction(ctx, hash)
	if err != nil {
		return s.fail(ctx, logger, address, "wait for transaction", err)
	}
	if !receipt.Success {
		return s.fail(ctx, logger, address, "wait for transaction", receiptError(receipt))
	}

	confirmed, err := s.advance(transactionConfirmed{})
	if err != nil {
		return s.fail(ctx, logger, address, "confirm transaction", err)
	}
	logger.Info("Deployment confirmed", zap.String("hash", hash), zap.String("version", receipt.Version))
	s.metrics.RecordDeployment(s.chain.String(), string(models.TransactionStatusConfirmed))
	s.publish(ctx, address, confirmed)
	return *confirmed.Outcome, nil
}

func receiptError(receipt models.Receipt) error {
	if receipt.VMStatus != "" {
		return errors.New(receipt.VMStatus)
	}
	return errors.New("transaction failed")
}

// transition must be called with mu held.
func (s *DeploymentSession) transition(event deploymentEvent) (DeploymentState, error) {
	next, err := reduceDeployment(s.state, event)
	if err != nil {
		return s.state, err
	}
	s.state = next
	return next, nil
}

func (s *DeploymentSession) advance(event deploymentEvent) (DeploymentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(event)
}

// fail records the provider error verbatim as the outcome error.
func (s *DeploymentSession) fail(ctx context.Context, logger *zap.Logger, address, step string, cause error) (models.TransactionOutcome, error) {
	logger.Error("Deployment failed", zap.String("step", step), zap.Error(cause))

	failed, err := s.advance(deployFailed{err: cause})
	if err != nil {
		logger.Error("Failed to record deployment failure", zap.Error(err))
		return models.TransactionOutcome{Status: models.TransactionStatusFailed, Error: cause.Error()}, cause
	}
	s.metrics.RecordDeployment(s.chain.String(), string(models.TransactionStatusFailed))
	s.publish(ctx, address, failed)
	return *failed.Outcome, cause
}

func (s *DeploymentSession) publish(ctx context.Context, address string, state DeploymentState) {
	if state.Outcome == nil {
		return
	}
	event := DeploymentEvent{
		SessionID: s.ID,
		Attempt:   state.Attempt,
		Chain:     s.chain,
		Contract:  s.contract,
		Address:   address,
		Outcome:   *state.Outcome,
	}
	// hooks must still see the final outcome when the request context is gone
	if err := s.hooks.OnOutcomeChanged(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("Deployment hook failed", zap.Error(err))
	}
}
