// Command pocketasr decodes a single wave file or a batch of them listed in
// an SCP file against a configured recognizer, printing hypotheses to
// stdout.
package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-audio/wav"

	"github.com/gospeech/pocketasr/internal/config"
	"github.com/gospeech/pocketasr/internal/pcm"
	"github.com/gospeech/pocketasr/internal/session"
)

// processReadBufSize is the chunk size main.cc's ProcessAudio reads with.
const processReadBufSize = 1024

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) != 2 {
		printUsage()
		return 22
	}
	configFile, inputFile := args[0], args[1]
	if len(inputFile) < 4 {
		printUsage()
		return 22
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}))

	loadStart := time.Now()
	rec, err := session.NewRecognizer(cfg)
	if err != nil {
		logger.Error("loading recognizer", "config", configFile, "error", err)
		fmt.Fprintf(os.Stderr, "pocketasr: %v\n", err)
		return 1
	}
	logger.Info("recognizer loaded", "config", configFile, "elapsed", time.Since(loadStart))

	if strings.HasSuffix(inputFile, ".wav") {
		hyp, err := processAudio(rec, inputFile)
		if err != nil {
			logger.Error("decoding", "input", inputFile, "error", err)
			fmt.Fprintf(os.Stderr, "pocketasr: %v\n", err)
			return 1
		}
		fmt.Println(hyp)
		return 0
	}

	if err := processSCP(rec, inputFile); err != nil {
		if rc, ok := err.(exitCode); ok {
			fmt.Fprintln(os.Stderr, rc.msg)
			return rc.code
		}
		fmt.Fprintf(os.Stderr, "pocketasr: %v\n", err)
		return 1
	}
	return 0
}

// exitCode carries a specific process exit code for a user-facing error,
// matching main.cc's distinct Fatal (22) vs CheckStatus (1) failure paths.
type exitCode struct {
	code int
	msg  string
}

func (e exitCode) Error() string { return e.msg }

// processAudio decodes one wave file end to end and returns its hypothesis.
// Ported from main.cc's ProcessAudio.
func processAudio(rec *session.Recognizer, filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", filename, err)
	}
	defer f.Close()

	// The CLI's file path can validate the outer RIFF/WAVE container before
	// committing to the session API's stricter manual header parse below;
	// streamed session-API bytes get no such luxury, so pcm.ReadHeader stays
	// the one true parser for the fmt chunk both paths ultimately rely on.
	if !wav.NewDecoder(f).IsValidFile() {
		return "", fmt.Errorf("%s: not a valid WAV container", filename)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding %s: %w", filename, err)
	}

	hdr, err := pcm.ReadHeader(f)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filename, err)
	}

	utt, err := session.NewUtterance(rec, hdr.Format)
	if err != nil {
		return "", err
	}
	defer utt.Destroy()

	buf := make([]byte, processReadBufSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if _, procErr := utt.Process(buf[:n]); procErr != nil {
				return "", procErr
			}
		}
		if err != nil {
			break
		}
	}

	if err := utt.EndOfStream(); err != nil {
		return "", err
	}
	return utt.Hypothesis(), nil
}

// processSCP decodes each `utt_id wav_path` line of an SCP file, printing
// `utt_id hyp` per line. Ported from main.cc's process_scp.
func processSCP(rec *session.Recognizer, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filename, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return exitCode{22, fmt.Sprintf("scp: unexpected line %d: %s", lineNo, line)}
		}

		name, wavFile := fields[0], fields[1]
		hyp, err := processAudio(rec, wavFile)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", name, hyp)
	}
	return scanner.Err()
}

// parseLogLevel maps a config log_level string to an slog level, defaulting
// to Info for an empty or unrecognized value (session.NewRecognizer's
// config.Validate call rejects unrecognized values right after this).
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printUsage() {
	fmt.Println("Usage: pocketasr <config-file> <input-file>")
	fmt.Println("  Input-file:")
	fmt.Println("    *.wav: decode this file.")
	fmt.Println("    otherwise: decode audios listed in it as an SCP file.")
}
