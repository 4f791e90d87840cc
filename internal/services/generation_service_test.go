package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rxtech-lab/contractgen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type GenerationSessionTestSuite struct {
	suite.Suite
	provider *fakeProvider
	session  *GenerationSession
}

func (s *GenerationSessionTestSuite) SetupTest() {
	s.provider = &fakeProvider{}
	s.session = NewGenerationSession("gen-1", s.provider, zap.NewNop(), nil)
}

func (s *GenerationSessionTestSuite) TestInitialState() {
	snapshot := s.session.Snapshot()
	s.Equal("gen-1", snapshot.ID)
	s.Equal(GenerationIdle, snapshot.Status)
	s.Equal(models.ChainAptos, snapshot.Chain)
	s.Empty(snapshot.Response)
}

func (s *GenerationSessionTestSuite) TestBlankPromptMakesNoProviderCall() {
	for _, prompt := range []string{"", "   ", "\n\t"} {
		err := s.session.Generate(context.Background(), prompt, models.ChainAptos, nil)
		s.ErrorIs(err, ErrEmptyPrompt)
	}
	s.Equal(0, s.provider.calls())
	s.Equal(GenerationIdle, s.session.Snapshot().Status)
}

func (s *GenerationSessionTestSuite) TestBlankPromptKeepsPreviousResult() {
	s.provider.streams = []fakeStream{{chunks: []string{"```move\n", "module 0x1::a {}\n", "```"}}}
	s.Require().NoError(s.session.Generate(context.Background(), "a module", models.ChainAptos, nil))
	before := s.session.Snapshot()
	s.Require().Equal(GenerationCompleted, before.Status)

	err := s.session.Generate(context.Background(), "   ", models.ChainPolygon, nil)
	s.ErrorIs(err, ErrEmptyPrompt)

	after := s.session.Snapshot()
	s.Equal(before, after)
	s.Equal("```move\nmodule 0x1::a {}\n```", after.Response)
	s.Equal(1, s.provider.calls())
}

func (s *GenerationSessionTestSuite) TestAptosUsesMoveInstruction() {
	s.provider.streams = []fakeStream{{chunks: []string{"ok"}}}

	err := s.session.Generate(context.Background(), "a counter", models.ChainAptos, nil)
	s.Require().NoError(err)

	s.Require().Len(s.provider.instructions, 1)
	s.Equal(
		"You are a smart contract generator. The user wants to generate a smart contract for the Aptos blockchain using Move. Generate a fully functional smart contract code based on the given prompt.",
		s.provider.instructions[0],
	)
	s.Equal([]Turn{{Role: RoleUser, Text: "a counter"}}, s.provider.histories[0])
	s.Equal([]string{"a counter"}, s.provider.prompts)
}

func (s *GenerationSessionTestSuite) TestPolygonUsesSolidityInstruction() {
	s.provider.streams = []fakeStream{{chunks: []string{"ok"}}}

	err := s.session.Generate(context.Background(), "an ERC20", models.ChainPolygon, nil)
	s.Require().NoError(err)

	s.Contains(s.provider.instructions[0], "for the Polygon blockchain using Solidity.")
	s.Equal(models.ChainPolygon, s.session.Snapshot().Chain)
}

func (s *GenerationSessionTestSuite) TestChunksAccumulateAndDeriveCodeBlock() {
	s.provider.streams = []fakeStream{{chunks: []string{"```mo", "ve\nmodule A {}\n", "```"}}}

	var seen []string
	err := s.session.Generate(context.Background(), "module", models.ChainAptos, func(chunk string) {
		seen = append(seen, chunk)
	})
	s.Require().NoError(err)

	snapshot := s.session.Snapshot()
	s.Equal(GenerationCompleted, snapshot.Status)
	s.Equal("```move\nmodule A {}\n```", snapshot.Response)
	s.Equal("move", snapshot.CodeBlock.Language)
	s.Equal("module A {}\n", snapshot.CodeBlock.Code)
	s.Equal([]string{"```mo", "ve\nmodule A {}\n", "```"}, seen)
}

func (s *GenerationSessionTestSuite) TestStreamFailureSetsSentinel() {
	s.provider.streams = []fakeStream{{chunks: []string{"partial"}, err: errors.New("stream reset")}}

	err := s.session.Generate(context.Background(), "anything", models.ChainAptos, nil)
	s.Require().Error(err)
	s.Contains(err.Error(), "stream reset")

	snapshot := s.session.Snapshot()
	s.Equal(GenerationFailed, snapshot.Status)
	s.Equal("Error occurred while fetching response.", snapshot.Response)
	s.Equal("", snapshot.CodeBlock.Language)
	s.Equal("Error occurred while fetching response.", snapshot.CodeBlock.Code)
}

func (s *GenerationSessionTestSuite) TestStartFailureSetsSentinel() {
	s.provider.startErr = errors.New("invalid api key")

	err := s.session.Generate(context.Background(), "anything", models.ChainAptos, nil)
	s.Require().Error(err)
	s.Equal(GenerationErrorMessage, s.session.Snapshot().Response)
}

func (s *GenerationSessionTestSuite) TestNewGenerateDiscardsStaleStream() {
	release := make(chan struct{})
	s.provider.streams = []fakeStream{
		{chunks: []string{"old-1", "old-2"}, blockAfter: 1, release: release},
		{chunks: []string{"new"}},
	}

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.session.Generate(context.Background(), "first", models.ChainAptos, nil)
	}()
	s.Eventually(func() bool {
		return s.session.Snapshot().Response == "old-1"
	}, time.Second, 5*time.Millisecond)

	s.Require().NoError(s.session.Generate(context.Background(), "second", models.ChainAptos, nil))
	close(release)

	select {
	case err := <-firstDone:
		s.ErrorIs(err, ErrGenerationSuperseded)
	case <-time.After(time.Second):
		s.Fail("first generation did not return")
	}

	snapshot := s.session.Snapshot()
	s.Equal("new", snapshot.Response)
	s.Equal("second", snapshot.Prompt)
	s.Equal(GenerationCompleted, snapshot.Status)
}

func (s *GenerationSessionTestSuite) TestNewerStreamWaitsForChunkDelivery() {
	streamRelease := make(chan struct{})
	s.provider.streams = []fakeStream{
		{chunks: []string{"old-1", "old-2"}, blockAfter: 1, release: streamRelease},
		{chunks: []string{"new"}},
	}

	inside := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var delivered []string
	onChunk := func(chunk string) {
		mu.Lock()
		delivered = append(delivered, chunk)
		first := len(delivered) == 1
		mu.Unlock()
		if first {
			close(inside)
			<-release
		}
	}

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.session.Generate(context.Background(), "first", models.ChainAptos, onChunk)
	}()
	<-inside

	secondDone := make(chan error, 1)
	go func() {
		secondDone <- s.session.Generate(context.Background(), "second", models.ChainAptos, nil)
	}()
	s.Never(func() bool {
		return s.session.Snapshot().Prompt == "second"
	}, 50*time.Millisecond, 5*time.Millisecond)

	close(release)
	s.Require().NoError(<-secondDone)
	close(streamRelease)
	s.ErrorIs(<-firstDone, ErrGenerationSuperseded)

	mu.Lock()
	defer mu.Unlock()
	s.Equal([]string{"old-1"}, delivered)
	s.Equal("new", s.session.Snapshot().Response)
}

func (s *GenerationSessionTestSuite) TestHandoffAndExport() {
	response := "Here you go:\n```move\nmodule A {}\n```\n"
	s.provider.streams = []fakeStream{{chunks: []string{response}}}
	s.Require().NoError(s.session.Generate(context.Background(), "module", models.ChainEthereum, nil))

	handoff := s.session.Handoff()
	s.Equal(Handoff{Contract: response, Chain: models.ChainEthereum}, handoff)

	var buf bytes.Buffer
	s.Require().NoError(s.session.Export(&buf))
	s.Equal(response, buf.String())
}

func (s *GenerationSessionTestSuite) TestSelectChain() {
	s.session.SelectChain(models.ChainPolygon)
	s.Equal(models.ChainPolygon, s.session.Snapshot().Chain)
	s.Equal(models.ChainPolygon, s.session.Handoff().Chain)
}

func TestGenerationSessionTestSuite(t *testing.T) {
	suite.Run(t, new(GenerationSessionTestSuite))
}

func TestSystemInstruction(t *testing.T) {
	assert.Contains(t, SystemInstruction(models.ChainAptos), "Aptos blockchain using Move")
	assert.Contains(t, SystemInstruction(models.ChainEthereum), "Ethereum blockchain using Solidity")
	require.Contains(t, SystemInstruction(models.Chain("Solana")), "Solana blockchain using Solidity")
}
