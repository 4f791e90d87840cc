package services

import (
	"fmt"

	"github.com/rxtech-lab/contractgen/internal/models"
)

const (
	NoticeConnectWallet   = "Please connect your wallet first."
	NoticeSignTransaction = "Please sign the transaction in your wallet."
	noticeDeployFailed    = "Deployment failed: "
)

type DeployPhase string

const (
	DeployIdle       DeployPhase = "idle"
	DeployBuilding   DeployPhase = "building"
	DeploySigning    DeployPhase = "signing"
	DeploySubmitting DeployPhase = "submitting"
	DeployPending    DeployPhase = "pending"
	DeployConfirmed  DeployPhase = "confirmed"
	DeployFailed     DeployPhase = "failed"
)

// Running reports whether a deploy attempt is between request and final outcome.
func (p DeployPhase) Running() bool {
	switch p {
	case DeployBuilding, DeploySigning, DeploySubmitting, DeployPending:
		return true
	}
	return false
}

// DeploymentState is the deploy related part of a deployment session.
type DeploymentState struct {
	Phase   DeployPhase                `json:"phase"`
	Attempt int                        `json:"attempt"`
	Outcome *models.TransactionOutcome `json:"outcome,omitempty"`
	// Notice is the last message shown to the user.
	Notice string `json:"notice,omitempty"`
}

func newDeploymentState() DeploymentState {
	return DeploymentState{Phase: DeployIdle}
}

type deploymentEvent interface {
	isDeploymentEvent()
}

type noticeRaised struct{ message string }
type deployRequested struct{}
type transactionBuilt struct{}
type transactionSigned struct{}
type transactionSubmitted struct{ hash string }
type transactionConfirmed struct{}
type deployFailed struct{ err error }

func (noticeRaised) isDeploymentEvent()         {}
func (deployRequested) isDeploymentEvent()      {}
func (transactionBuilt) isDeploymentEvent()     {}
func (transactionSigned) isDeploymentEvent()    {}
func (transactionSubmitted) isDeploymentEvent() {}
func (transactionConfirmed) isDeploymentEvent() {}
func (deployFailed) isDeploymentEvent()         {}

// reduceDeployment applies event to state and rejects transitions the deploy
// state machine does not allow.
func reduceDeployment(state DeploymentState, event deploymentEvent) (DeploymentState, error) {
	switch e := event.(type) {
	case noticeRaised:
		state.Notice = e.message
		return state, nil

	case deployRequested:
		if state.Phase.Running() {
			return state, ErrDeployInProgress
		}
		state.Phase = DeployBuilding
		state.Attempt++
		state.Outcome = &models.TransactionOutcome{Status: models.TransactionStatusPending}
		state.Notice = NoticeSignTransaction
		return state, nil

	case transactionBuilt:
		return advance(state, DeployBuilding, DeploySigning)

	case transactionSigned:
		return advance(state, DeploySigning, DeploySubmitting)

	case transactionSubmitted:
		next, err := advance(state, DeploySubmitting, DeployPending)
		if err != nil {
			return state, err
		}
		outcome := *next.Outcome
		outcome.Hash = e.hash
		next.Outcome = &outcome
		return next, nil

	case transactionConfirmed:
		next, err := advance(state, DeployPending, DeployConfirmed)
		if err != nil {
			return state, err
		}
		outcome := *next.Outcome
		outcome.Status = models.TransactionStatusConfirmed
		next.Outcome = &outcome
		return next, nil

	case deployFailed:
		if !state.Phase.Running() {
			return state, fmt.Errorf("cannot fail deployment in phase %s", state.Phase)
		}
		message := "unknown error"
		if e.err != nil {
			message = e.err.Error()
		}
		outcome := *state.Outcome
		outcome.Status = models.TransactionStatusFailed
		outcome.Error = message
		state.Outcome = &outcome
		state.Phase = DeployFailed
		state.Notice = noticeDeployFailed + message
		return state, nil

	default:
		panic(fmt.Sprintf("unhandled deployment event %T", event))
	}
}

func advance(state DeploymentState, from, to DeployPhase) (DeploymentState, error) {
	if state.Phase != from {
		return state, fmt.Errorf("invalid deployment transition %s -> %s", state.Phase, to)
	}
	state.Phase = to
	return state, nil
}
