package streamserver

import (
	"fmt"

	"github.com/gospeech/pocketasr/internal/pcm"
	"github.com/gospeech/pocketasr/internal/session"
)

// wireFormat is the only wave format accepted over a streaming connection:
// mono, 16 kHz, 16-bit signed PCM, matching the "pcm16le" framing every
// client of this front end is expected to send.
var wireFormat = pcm.Format{SampleRate: 16000, BitsPerSample: 16, NumChannels: 1}

// RecognizerEngine wraps a loaded Recognizer as an Engine, opening one
// Utterance per connection.
type RecognizerEngine struct {
	rec *session.Recognizer
}

// NewRecognizerEngine wraps rec, which must already be loaded via
// session.NewRecognizer.
func NewRecognizerEngine(rec *session.Recognizer) *RecognizerEngine {
	return &RecognizerEngine{rec: rec}
}

func (e *RecognizerEngine) NewStream(sessionID string, onResult func(Result)) (Stream, error) {
	utt, err := session.NewUtterance(e.rec, wireFormat)
	if err != nil {
		return nil, fmt.Errorf("streamserver: session %s: %w", sessionID, err)
	}
	return &utteranceStream{utt: utt, onResult: onResult}, nil
}

// utteranceStream adapts a *session.Utterance to the Stream interface,
// pushing a Result to onResult whenever PushAudio changes the decoder's
// running hypothesis, and always pushing the final Result on Flush.
type utteranceStream struct {
	utt      *session.Utterance
	onResult func(Result)
	lastHyp  string
	closed   bool
}

func (s *utteranceStream) PushAudio(pcm16le []byte) error {
	if s.closed {
		return nil
	}
	if _, err := s.utt.Process(pcm16le); err != nil {
		if s.onResult != nil {
			s.onResult(Result{Error: err.Error()})
		}
		return err
	}
	s.emitIfChanged(false)
	return nil
}

func (s *utteranceStream) Flush() error {
	if s.closed {
		return nil
	}
	if err := s.utt.EndOfStream(); err != nil {
		if s.onResult != nil {
			s.onResult(Result{Error: err.Error()})
		}
		return err
	}
	s.lastHyp = s.utt.Hypothesis()
	if s.onResult != nil {
		s.onResult(Result{Text: s.lastHyp, IsFinal: true})
	}
	return nil
}

func (s *utteranceStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.utt.Destroy()
	return nil
}

func (s *utteranceStream) emitIfChanged(final bool) {
	hyp := s.utt.Hypothesis()
	if hyp == s.lastHyp {
		return
	}
	s.lastHyp = hyp
	if s.onResult != nil {
		s.onResult(Result{Text: hyp, IsFinal: final})
	}
}
