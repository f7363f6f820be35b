package session

import (
	"fmt"
	"os"

	"github.com/gospeech/pocketasr/internal/config"
	"github.com/gospeech/pocketasr/internal/fst"
	"github.com/gospeech/pocketasr/internal/matrix"
	"github.com/gospeech/pocketasr/internal/nnet"
	"github.com/gospeech/pocketasr/internal/symtab"
)

// deltaLMCacheCapacity mirrors the original's CachedFst wrapping the
// delta-LM with a million-entry single-bucket-per-key cache.
const deltaLMCacheCapacity = 1000000

// Recognizer holds everything loaded once from a configuration file: the
// HCLG transducer, the acoustic model, the symbol table, and (optionally)
// the large-LM delta composition. All of it is read-only and safe to share
// across sessions running on different goroutines, per spec §5.
type Recognizer struct {
	cfg     *config.Config
	hclg    *fst.Fst
	symbols *symtab.Table
	deltaLM fst.ArcSource // nil unless large_lm/original_lm are configured

	// Acoustic model parameters, shared read-only across utterances. Each
	// Utterance wraps these in its own *nnet.Model so the streaming
	// deque/started state stays per-utterance, mirroring the original's
	// split between AcousticModel (config) and AcousticModel::Instance
	// (per-utt buffering state).
	nn                 *nnet.Nnet
	amLeft, amRight    int
	amChunk            int
	logPrior           *matrix.Vector
	tid2pdf            []int32

	cmvnEnabled     bool
	globalCmvnStats []float64 // nil if cmvn_stats is unset or disabled

	lastErr error
}

// newAcousticModel returns a fresh streaming acoustic-model driver sharing
// this Recognizer's network weights, prior, and transition map but owning
// its own feature buffering state.
func (r *Recognizer) newAcousticModel() *nnet.Model {
	return nnet.NewModel(r.nn, r.amLeft, r.amRight, r.amChunk, r.logPrior, r.tid2pdf)
}

// LastError returns the error from the most recent failing call on this
// Recognizer or any Utterance created from it, modeling the single
// thread-local error buffer the original exposes via ce_stt_last_error.
func (r *Recognizer) LastError() error { return r.lastErr }

func (r *Recognizer) setErr(err error) error {
	r.lastErr = err
	return err
}

// NewRecognizer loads the HCLG FST, acoustic model, symbol table, and
// (when configured) the delta-LM composition named by cfg. Ported from
// ce_stt_init; the goto-based Status chain becomes an early-return chain.
func NewRecognizer(cfg *config.Config) (*Recognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session: invalid configuration: %w", err)
	}

	r := &Recognizer{cfg: cfg}

	hclg, err := readFst(cfg.FST)
	if err != nil {
		return nil, r.setErr(err)
	}
	r.hclg = hclg

	nn, left, right, logPrior, tid2pdf, err := readAcousticModel(cfg)
	if err != nil {
		return nil, r.setErr(err)
	}
	r.nn, r.amLeft, r.amRight, r.amChunk, r.logPrior, r.tid2pdf = nn, left, right, cfg.ChunkSize, logPrior, tid2pdf

	symbols, err := readSymbolTable(cfg.SymbolTable)
	if err != nil {
		return nil, r.setErr(err)
	}
	r.symbols = symbols

	if cfg.LargeLM != "" {
		deltaLM, err := readDeltaLM(cfg, symbols)
		if err != nil {
			return nil, r.setErr(err)
		}
		r.deltaLM = fst.NewArcCache(deltaLM, deltaLMCacheCapacity)
	}

	r.cmvnEnabled = cfg.EnableCmvn != nil && *cfg.EnableCmvn
	if r.cmvnEnabled && cfg.CmvnStats != "" {
		stats, err := readCmvnStats(cfg.CmvnStats)
		if err != nil {
			return nil, r.setErr(err)
		}
		r.globalCmvnStats = stats
	}

	return r, nil
}

func readFst(path string) (*fst.Fst, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("session: opening fst %q: %w", path, err)
	}
	defer f.Close()
	return fst.ReadFst(f, path)
}

func readAcousticModel(cfg *config.Config) (nn *nnet.Nnet, left, right int, prior *matrix.Vector, tid2pdf []int32, err error) {
	nf, err := os.Open(cfg.Nnet)
	if err != nil {
		return nil, 0, 0, nil, nil, fmt.Errorf("session: opening nnet %q: %w", cfg.Nnet, err)
	}
	defer nf.Close()
	nn, left, right, err = nnet.ReadNnet(nf, cfg.Nnet)
	if err != nil {
		return nil, 0, 0, nil, nil, err
	}

	pf, err := os.Open(cfg.Prior)
	if err != nil {
		return nil, 0, 0, nil, nil, fmt.Errorf("session: opening prior %q: %w", cfg.Prior, err)
	}
	defer pf.Close()
	prior, err = nnet.ReadPrior(pf, cfg.Prior)
	if err != nil {
		return nil, 0, 0, nil, nil, err
	}
	if prior.Dim() != cfg.NumPdfs {
		return nil, 0, 0, nil, nil, fmt.Errorf("session: prior %q has %d pdfs, config declares num_pdfs=%d",
			cfg.Prior, prior.Dim(), cfg.NumPdfs)
	}

	tf, err := os.Open(cfg.Tid2Pdf)
	if err != nil {
		return nil, 0, 0, nil, nil, fmt.Errorf("session: opening tid2pdf %q: %w", cfg.Tid2Pdf, err)
	}
	defer tf.Close()
	tid2pdf, err = nnet.ReadTransitionMap(tf)
	if err != nil {
		return nil, 0, 0, nil, nil, err
	}

	if cfg.LeftContext != 0 {
		left = cfg.LeftContext
	}
	if cfg.RightContext != 0 {
		right = cfg.RightContext
	}
	return nn, left, right, prior, tid2pdf, nil
}

func readSymbolTable(path string) (*symtab.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("session: opening symbol table %q: %w", path, err)
	}
	defer f.Close()
	return symtab.Read(f, path)
}

// readDeltaLM loads the large replacement LM and the original (small) LM's
// unigram costs, then wraps them as a DeltaLmFst view, per ce_stt.cc's
// ReadDeltaLmFst.
func readDeltaLM(cfg *config.Config, symbols *symtab.Table) (*fst.DeltaLmFst, error) {
	if cfg.OriginalLM == "" {
		return nil, fmt.Errorf("session: large_lm set without original_lm")
	}

	of, err := os.Open(cfg.OriginalLM)
	if err != nil {
		return nil, fmt.Errorf("session: opening original_lm %q: %w", cfg.OriginalLM, err)
	}
	defer of.Close()
	unigram, err := nnet.ReadVector(of, cfg.OriginalLM)
	if err != nil {
		return nil, err
	}

	lf, err := os.Open(cfg.LargeLM)
	if err != nil {
		return nil, fmt.Errorf("session: opening large_lm %q: %w", cfg.LargeLM, err)
	}
	defer lf.Close()
	largeFst, err := fst.ReadLmFst(lf, cfg.LargeLM)
	if err != nil {
		return nil, err
	}
	largeLM := fst.NewLmFst(largeFst)
	largeLM.InitBucket0()

	return fst.NewDeltaLmFst(unigram.Data(), largeLM, symbols.StartID(), symbols.EndID()), nil
}

func readCmvnStats(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("session: opening cmvn_stats %q: %w", path, err)
	}
	defer f.Close()
	v, err := nnet.ReadVector(f, path)
	if err != nil {
		return nil, err
	}
	out := make([]float64, v.Dim())
	for i := 0; i < v.Dim(); i++ {
		out[i] = float64(v.At(i))
	}
	return out, nil
}
