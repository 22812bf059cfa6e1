package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"

	"github.com/barnettlynn/nfctools/mfdump/internal/config"
	"github.com/barnettlynn/nfctools/mfdump/internal/session"
	"github.com/barnettlynn/nfctools/pkg/mifare"
	"github.com/barnettlynn/nfctools/pkg/mifare/cardsim"
)

const configFileName = "config.yaml"

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	configFlag := flag.String("config", "", "path to config.yaml (default: next to the executable, then cwd)")
	emulator := flag.String("emulator", "", "run one session against a simulated card loaded from this 1K dump")
	once := flag.Bool("once", false, "exit after the first card")
	flag.Parse()

	// Configure slog
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if *logFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	}

	fs := afero.NewOsFs()

	// Load config
	configPath := *configFlag
	if configPath == "" {
		var err error
		configPath, err = defaultConfigPath()
		if err != nil {
			log.Fatalf("resolve config path failed: %v", err)
		}
	}
	fmt.Printf("Using config: %s\n", configPath)

	cfg, err := config.Load(fs, configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	// Load keys. A broken key file leaves every block unreadable but is
	// not fatal: the UID and the dump layout still come out.
	keyPath, keyFormat := cfg.KeySource()
	keys, err := mifare.LoadKeyStore(fs, keyPath, keyFormat)
	if err != nil {
		slog.Warn("key store load failed, continuing without keys", "path", keyPath, "format", keyFormat, "error", err)
	}
	fmt.Printf("Keys: %s (%s, %d loaded)\n", keyPath, keyFormat, keys.Len())

	// Report sink
	var report io.Writer = os.Stdout
	if cfg.Runtime.LogFile != "" {
		f, err := fs.OpenFile(cfg.Runtime.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("open log file failed: %v", err)
		}
		defer f.Close()
		report = io.MultiWriter(os.Stdout, f)
		fmt.Printf("Report log: %s\n", cfg.Runtime.LogFile)
	}

	options := session.Options{
		DumpCard:  *cfg.Runtime.DumpCard,
		DumpMoney: *cfg.Runtime.DumpMoney,
	}
	if cents, ok := cfg.TargetCents(); ok {
		options.TargetCents = &cents
	}
	sessOpts := []session.Option{session.WithOutput(report)}
	if cfg.Runtime.ConfirmWrites {
		sessOpts = append(sessOpts, session.WithConfirm(confirmWrite))
	}
	dumper := session.NewDumper(keys, options, sessOpts...)

	if *emulator != "" {
		if err := runEmulator(fs, *emulator, dumper); err != nil {
			log.Fatalf("emulator: %v", err)
		}
		return
	}

	if *once && cfg.Runtime.ReaderIndex != nil && runPresentCard(*cfg.Runtime.ReaderIndex, dumper, report) {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := &mifare.Monitor{
		ReaderIndex: cfg.Runtime.ReaderIndex,
		OnPresent: func(conn *mifare.Connection) {
			handleCard(conn, dumper, report)
			if *once {
				stop()
			}
		},
	}
	if err := monitor.Run(ctx); err != nil {
		log.Fatalf("card monitor failed: %v", err)
	}
}

// runPresentCard handles a card already lying on the reader. It reports
// false when there is none, so the caller can wait for one instead.
func runPresentCard(readerIndex int, dumper *session.Dumper, report io.Writer) bool {
	conn, err := mifare.Connect(readerIndex)
	if err != nil {
		slog.Debug("no card on reader, waiting for one", "reader_index", readerIndex, "error", err)
		return false
	}
	defer conn.Close()
	fmt.Fprintf(report, "Using reader [%d]: %s\n", conn.ReaderIdx, conn.Reader)
	handleCard(conn, dumper, report)
	return true
}

func handleCard(conn *mifare.Connection, dumper *session.Dumper, report io.Writer) {
	fmt.Fprintf(report, "CardInserted Event for reader %s\n", conn.Reader)
	if line, err := conn.StatusLine(); err != nil {
		slog.Warn("card status unavailable", "reader", conn.Reader, "error", err)
	} else {
		fmt.Fprintln(report, line)
	}
	logResult(dumper.OnCardPresented(conn))
}

func runEmulator(fs afero.Fs, dumpPath string, dumper *session.Dumper) error {
	image, err := afero.ReadFile(fs, dumpPath)
	if err != nil {
		return fmt.Errorf("read card image: %w", err)
	}
	sim, err := cardsim.New(image)
	if err != nil {
		return fmt.Errorf("card image %s: %w", dumpPath, err)
	}
	slog.Info("emulating card", "image", dumpPath, "uid", mifare.HexUpper(sim.UID()))
	logResult(dumper.OnCardPresented(sim))
	return nil
}

func logResult(res session.Result) {
	if res.Err != nil {
		slog.Error("card session failed", "uid", res.UID, "error", res.Err)
		return
	}
	attrs := []any{"uid", res.UID}
	if res.Dump != nil {
		attrs = append(attrs, "readable_blocks", res.Dump.Readable())
	}
	if res.Money != nil {
		attrs = append(attrs, "cents", res.Money.Cents)
	}
	if res.Update != nil {
		attrs = append(attrs, "update", res.Update.Outcome, "verified", res.Update.Verified)
	}
	slog.Info("card session done", attrs...)
}

func defaultConfigPath() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", err
	}
	exeConfigPath := filepath.Join(filepath.Dir(exePath), configFileName)
	if fileExists(exeConfigPath) {
		return exeConfigPath, nil
	}

	// Fallback for `go run`, where the executable is placed in a temp directory.
	cwd, err := os.Getwd()
	if err != nil {
		return exeConfigPath, nil
	}
	cwdConfigPath := filepath.Join(cwd, configFileName)
	if fileExists(cwdConfigPath) {
		return cwdConfigPath, nil
	}
	return exeConfigPath, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
