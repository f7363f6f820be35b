// Package session wires the acoustic front end and decoder into the
// per-utterance state machine a caller drives one PCM chunk at a time,
// ported from original_source/src/ce_stt.cc.
package session

import "errors"

// ErrSequencing reports an API call made out of order (e.g. processing a
// destroyed utterance), a RuntimeError in spec §7's taxonomy.
var ErrSequencing = errors.New("session: illegal call sequencing")

// ErrUnsupportedFormat reports a wave format an utterance can't accept.
var ErrUnsupportedFormat = errors.New("session: unsupported wave format")
