package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rxtech-lab/contractgen/internal/models"
	"github.com/rxtech-lab/contractgen/internal/services"
	"github.com/stretchr/testify/suite"
)

// mockHook implements the Hook interface for testing
type mockHook struct {
	supported []models.TransactionStatus
	callCount int
	lastEvent *services.DeploymentEvent
	err       error
}

func newMockHook(supported ...models.TransactionStatus) *mockHook {
	return &mockHook{supported: supported}
}

func (m *mockHook) CanHandle(status models.TransactionStatus) bool {
	for _, s := range m.supported {
		if s == status {
			return true
		}
	}
	return false
}

func (m *mockHook) OnOutcomeChanged(_ context.Context, event services.DeploymentEvent) error {
	m.callCount++
	m.lastEvent = &event
	return m.err
}

type HookServiceTestSuite struct {
	suite.Suite
	hookService services.HookService
}

func (suite *HookServiceTestSuite) SetupTest() {
	suite.hookService = services.NewHookService()
}

func event(status models.TransactionStatus) services.DeploymentEvent {
	return services.DeploymentEvent{
		SessionID: "session-1",
		Attempt:   1,
		Chain:     models.ChainAptos,
		Contract:  "module A {}",
		Address:   "0xa11ce",
		Outcome:   models.TransactionOutcome{Status: status, Hash: "0xhash"},
	}
}

func (suite *HookServiceTestSuite) TestAddNilHook() {
	suite.Error(suite.hookService.AddHook(nil))
}

func (suite *HookServiceTestSuite) TestDispatchByStatus() {
	confirmedOnly := newMockHook(models.TransactionStatusConfirmed)
	all := newMockHook(models.TransactionStatusPending, models.TransactionStatusConfirmed, models.TransactionStatusFailed)
	suite.Require().NoError(suite.hookService.AddHook(confirmedOnly))
	suite.Require().NoError(suite.hookService.AddHook(all))

	suite.NoError(suite.hookService.OnOutcomeChanged(context.Background(), event(models.TransactionStatusPending)))
	suite.Equal(0, confirmedOnly.callCount)
	suite.Equal(1, all.callCount)

	suite.NoError(suite.hookService.OnOutcomeChanged(context.Background(), event(models.TransactionStatusConfirmed)))
	suite.Equal(1, confirmedOnly.callCount)
	suite.Equal(2, all.callCount)
	suite.Equal("0xhash", confirmedOnly.lastEvent.Outcome.Hash)
	suite.Equal("session-1", confirmedOnly.lastEvent.SessionID)
}

func (suite *HookServiceTestSuite) TestFailingHookDoesNotStopOthers() {
	failing := newMockHook(models.TransactionStatusFailed)
	failing.err = errors.New("database is locked")
	after := newMockHook(models.TransactionStatusFailed)
	suite.Require().NoError(suite.hookService.AddHook(failing))
	suite.Require().NoError(suite.hookService.AddHook(after))

	err := suite.hookService.OnOutcomeChanged(context.Background(), event(models.TransactionStatusFailed))
	suite.Error(err)
	suite.Contains(err.Error(), "database is locked")
	suite.Equal(1, after.callCount)
}

func (suite *HookServiceTestSuite) TestNoHooks() {
	suite.NoError(suite.hookService.OnOutcomeChanged(context.Background(), event(models.TransactionStatusConfirmed)))
}

func TestHookServiceTestSuite(t *testing.T) {
	suite.Run(t, new(HookServiceTestSuite))
}
