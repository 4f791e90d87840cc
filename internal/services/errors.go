package services

import "errors"

var (
	ErrEmptyPrompt          = errors.New("prompt is required")
	ErrGenerationSuperseded = errors.New("generation superseded by a newer request")
	ErrWalletNotConnected   = errors.New("wallet not connected")
	ErrDeployInProgress     = errors.New("a deployment is already in progress")
	ErrSessionClosed        = errors.New("session closed")
	ErrSessionNotFound      = errors.New("session not found")
)
