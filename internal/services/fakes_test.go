package services

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"sync"

	"github.com/rxtech-lab/contractgen/internal/models"
)

// fakeStream yields chunks and then err. When release is set the stream
// blocks on it after yielding blockAfter chunks.
type fakeStream struct {
	chunks     []string
	err        error
	blockAfter int
	release    chan struct{}
}

type fakeProvider struct {
	mu           sync.Mutex
	streams      []fakeStream
	startErr     error
	instructions []string
	histories    [][]Turn
	prompts      []string
}

func (p *fakeProvider) StartSession(_ context.Context, systemInstruction string, history []Turn) (CompletionStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instructions = append(p.instructions, systemInstruction)
	p.histories = append(p.histories, append([]Turn(nil), history...))
	if p.startErr != nil {
		return nil, p.startErr
	}
	if len(p.streams) == 0 {
		return nil, errors.New("no scripted stream")
	}
	stream := p.streams[0]
	p.streams = p.streams[1:]
	return &fakeSession{provider: p, stream: stream}, nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.instructions)
}

type fakeSession struct {
	provider *fakeProvider
	stream   fakeStream
}

func (s *fakeSession) SendAndStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	s.provider.mu.Lock()
	s.provider.prompts = append(s.provider.prompts, prompt)
	s.provider.mu.Unlock()

	return func(yield func(string, error) bool) {
		for i, chunk := range s.stream.chunks {
			if s.stream.release != nil && i == s.stream.blockAfter {
				select {
				case <-s.stream.release:
				case <-ctx.Done():
					yield("", ctx.Err())
					return
				}
			}
			if !yield(chunk, nil) {
				return
			}
		}
		if s.stream.err != nil {
			yield("", s.stream.err)
		}
	}
}

type fakeWallet struct {
	mu        sync.Mutex
	conn      models.WalletConnection
	signErr   error
	signGate  chan struct{}
	signCalls int
	signedRaw []models.RawTransaction
}

func connectedWallet() *fakeWallet {
	return &fakeWallet{conn: models.WalletConnection{
		Connected: true,
		Wallet:    "Petra",
		Address:   "0xa11ce",
		PublicKey: "0xpub",
	}}
}

func (w *fakeWallet) Connect(_ context.Context, walletName string) (models.WalletConnection, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn = models.WalletConnection{Connected: true, Wallet: walletName, Address: "0xa11ce"}
	return w.conn, nil
}

func (w *fakeWallet) Disconnect(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn = models.WalletConnection{}
	return nil
}

func (w *fakeWallet) SignTransaction(ctx context.Context, raw models.RawTransaction) (models.SignedTransaction, error) {
	w.mu.Lock()
	w.signCalls++
	w.signedRaw = append(w.signedRaw, raw)
	gate := w.signGate
	signErr := w.signErr
	w.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.SignedTransaction{}, ctx.Err()
		}
	}
	if signErr != nil {
		return models.SignedTransaction{}, signErr
	}
	return models.SignedTransaction{Chain: raw.Chain, Body: json.RawMessage(`{"signed":true}`)}, nil
}

func (w *fakeWallet) Connection() models.WalletConnection {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn
}

func (w *fakeWallet) calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.signCalls
}

type fakeChain struct {
	mu          sync.Mutex
	generateErr error
	submitErr   error
	hash        string
	receipt     models.Receipt
	waitErr     error

	payloads    []models.Payload
	senders     []string
	submitCalls int
	waitCalls   int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		hash:    "0xhash",
		receipt: models.Receipt{Hash: "0xhash", Success: true, VMStatus: "Executed successfully", Version: "42"},
	}
}

func (c *fakeChain) GenerateTransaction(_ context.Context, sender string, payload models.Payload) (models.RawTransaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.senders = append(c.senders, sender)
	c.payloads = append(c.payloads, payload)
	if c.generateErr != nil {
		return models.RawTransaction{}, c.generateErr
	}
	return models.RawTransaction{Chain: models.ChainAptos, Body: json.RawMessage(`{"sender":"` + sender + `"}`)}, nil
}

func (c *fakeChain) SubmitTransaction(context.Context, models.SignedTransaction) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitCalls++
	if c.submitErr != nil {
		return "", c.submitErr
	}
	return c.hash, nil
}

func (c *fakeChain) WaitForTransaction(context.Context, string) (models.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waitCalls++
	if c.waitErr != nil {
		return models.Receipt{}, c.waitErr
	}
	return c.receipt, nil
}

func (c *fakeChain) generateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

type recordingHook struct {
	mu     sync.Mutex
	events []DeploymentEvent
	err    error
}

func (h *recordingHook) CanHandle(models.TransactionStatus) bool { return true }

func (h *recordingHook) OnOutcomeChanged(_ context.Context, event DeploymentEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *recordingHook) statuses() []models.TransactionStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []models.TransactionStatus
	for _, e := range h.events {
		out = append(out, e.Outcome.Status)
	}
	return out
}
