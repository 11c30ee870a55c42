package transcription

import (
	"context"

	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

// StubTranscript is returned for every key by the stub transcriber.
const StubTranscript = "Hi there! I'm Alex Rivera, founder of PixelPerfect. " +
	"We're a brand new design-focused SaaS startup that just secured initial funding. " +
	"We've built our MVP and now need our first talented marketing designer to help us establish " +
	"our brand identity and create compelling visual content for our launch. " +
	"I have a technical background but need someone creative who's excited about joining a tiny team " +
	"and wearing multiple hats. Looking for that special someone who wants to be employee #1 and grow with us!"

type stub struct {
	log *logger.Logger
}

// NewStub returns a transcriber for local development that never calls out.
func NewStub(log *logger.Logger) Transcriber {
	return &stub{log: log.With("service", "StubTranscriber")}
}

func (s *stub) TranscribeAudio(_ context.Context, storageKey string) (string, error) {
	s.log.Info("Returning canned transcript", "storage_key", storageKey)
	return StubTranscript, nil
}
