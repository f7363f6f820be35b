package session

import (
	"fmt"
	"strings"

	"github.com/gospeech/pocketasr/internal/cmvn"
	"github.com/gospeech/pocketasr/internal/decoder"
	"github.com/gospeech/pocketasr/internal/fbank"
	"github.com/gospeech/pocketasr/internal/matrix"
	"github.com/gospeech/pocketasr/internal/nnet"
	"github.com/gospeech/pocketasr/internal/pcm"
)

// hypRefreshEveryNFrames is the decoded-frame cadence at which Process
// recomputes utt.hyp from a running best path, matching ce_stt_process's
// `if (frame_count % 20 == 0)`.
const hypRefreshEveryNFrames = 20

// Utterance is the per-utterance decoding state: one fbank instance, an
// optional CMVN instance (nil when the recognizer's enable_cmvn is false),
// one streaming acoustic-model buffer, and one decoder, fed PCM bytes in
// strict temporal order. Not safe for concurrent use; owned by exactly one
// caller goroutine, per spec §5.
type Utterance struct {
	rec *Recognizer

	pcmDec    *pcm.StreamDecoder
	fbankInst *fbank.Instance
	cmvnInst  *cmvn.Instance // nil disables normalization entirely
	am        *nnet.Model
	dec       *decoder.Decoder

	hyp                   string
	logLikelihoodPerFrame float32
	destroyed             bool
}

// NewUtterance validates format and seeds a fresh decoding state against
// rec's models. Ported from ce_utt_init.
func NewUtterance(rec *Recognizer, format pcm.Format) (*Utterance, error) {
	if !format.Supported() {
		return nil, rec.setErr(fmt.Errorf("%w: %+v", ErrUnsupportedFormat, format))
	}
	pcmDec, err := pcm.NewStreamDecoder(format)
	if err != nil {
		return nil, rec.setErr(err)
	}

	fbankInst := fbank.NewInstance()
	var cmvnInst *cmvn.Instance
	if rec.cmvnEnabled {
		cmvnInst = cmvn.NewInstance(fbankInst.Dim(), rec.globalCmvnStats)
	}
	am := rec.newAcousticModel()
	dec := decoder.NewDecoder(rec.hclg, am, float32(rec.cfg.AmScale), rec.deltaLM)
	dec.SetBeam(float32(rec.cfg.Beam))
	dec.Initialize()

	return &Utterance{
		rec:       rec,
		pcmDec:    pcmDec,
		fbankInst: fbankInst,
		cmvnInst:  cmvnInst,
		am:        am,
		dec:       dec,
	}, nil
}

// Process feeds raw PCM bytes (of the format given to NewUtterance) into
// the front end and decoder, returning the number of samples decoded from
// data. Ported from ce_stt_process.
func (u *Utterance) Process(data []byte) (int, error) {
	if u.destroyed {
		return 0, u.rec.setErr(ErrSequencing)
	}

	samples, err := u.pcmDec.Process(data)
	if err != nil {
		return 0, u.rec.setErr(err)
	}
	if len(samples) == 0 {
		return 0, nil
	}

	for _, raw := range u.fbankInst.Process(samples) {
		norm := raw
		if u.cmvnInst != nil {
			norm = u.cmvnInst.GetFrame(raw)
		}
		u.am.AppendFrame(norm)
		for u.am.BatchAvailable() {
			u.decodeBatch(u.am.ComputeBatch())
		}
	}

	return len(samples), nil
}

// EndOfStream flushes any buffered frames through the acoustic model and
// decoder, marks the decoder's search as finished so BestPath considers
// final costs, and recomputes utt.hyp one last time. Ported from
// ce_stt_end_of_stream.
func (u *Utterance) EndOfStream() error {
	if u.destroyed {
		return u.rec.setErr(ErrSequencing)
	}

	u.decodeBatch(u.am.EndOfStream())
	u.dec.EndOfStream()
	u.refreshHypothesis()
	return nil
}

func (u *Utterance) decodeBatch(logProb *matrix.Matrix) {
	for i := 0; i < logProb.NumRows(); i++ {
		u.dec.Process(matrix.VectorFrom(logProb.Row(i)))
		if u.dec.NumFramesDecoded()%hypRefreshEveryNFrames == 0 {
			u.refreshHypothesis()
		}
	}
}

// refreshHypothesis recomputes utt.hyp and the per-frame log-likelihood
// from the decoder's current best path. Ported from StoreHypText.
func (u *Utterance) refreshHypothesis() {
	hyp := u.dec.BestPath()
	if len(hyp.Words) == 0 {
		u.hyp = ""
		return
	}

	var sb strings.Builder
	for i := len(hyp.Words) - 1; i >= 0; i-- {
		sb.WriteString(u.rec.symbols.Get(hyp.Words[i]))
		sb.WriteByte(' ')
	}
	u.hyp = strings.TrimRight(sb.String(), " ")

	if n := u.dec.NumFramesDecoded(); n > 0 {
		u.logLikelihoodPerFrame = hyp.Weight / float32(n)
	}
}

// Hypothesis returns the most recently computed transcript, updated every
// hypRefreshEveryNFrames decoded frames and once more by EndOfStream.
func (u *Utterance) Hypothesis() string { return u.hyp }

// LogLikelihoodPerFrame returns the best path's total cost divided by the
// number of frames decoded so far.
func (u *Utterance) LogLikelihoodPerFrame() float32 { return u.logLikelihoodPerFrame }

// Destroy releases this utterance's decoding state. After Destroy, Process
// and EndOfStream return ErrSequencing.
func (u *Utterance) Destroy() {
	u.destroyed = true
	u.am = nil
	u.dec = nil
}
