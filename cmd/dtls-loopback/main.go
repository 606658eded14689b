// Command dtls-loopback runs a client and a server record layer against each
// other inside one process.
//
// The two endpoints perform a pre-shared key handshake whose server flight
// carries a filler certificate large enough to be fragmented, switch to the
// negotiated AEAD epoch and echo application records. Datagram loss can be
// injected during the handshake to watch flights being retransmitted.
//
// Usage:
//
//	dtls-loopback [flags]
//
// Flags:
//
//	-config string        YAML configuration file
//	-transport string     Datagram transport: pipe, udp (default "pipe")
//	-loss float           Handshake datagram loss probability (0-1)
//	-messages int         Application records to echo (default 5)
//	-cert-size int        Size of the filler certificate (default 3000)
//	-psk string           Pre-shared key (default "loopback-demo-key")
//	-protocol-log string  File path for protocol event logging (CBOR format)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Handshake over real UDP sockets on 127.0.0.1
//	dtls-loopback -transport udp
//
//	# Lose a third of the handshake and capture what happened
//	dtls-loopback -loss 0.3 -protocol-log loss.dlog
//	dtls-log stats loss.dlog
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mash-protocol/mash-dtls/pkg/config"
	dtlslog "github.com/mash-protocol/mash-dtls/pkg/log"
)

var (
	configFile  = flag.String("config", "", "YAML configuration file")
	transportFl = flag.String("transport", TransportPipe, "Datagram transport: pipe, udp")
	loss        = flag.Float64("loss", 0, "Handshake datagram loss probability (0-1)")
	messages    = flag.Int("messages", 5, "Application records to echo")
	certSize    = flag.Int("cert-size", 3000, "Size of the filler certificate")
	psk         = flag.String("psk", "loopback-demo-key", "Pre-shared key")
	protocolLog = flag.String("protocol-log", "", "File path for protocol event logging (CBOR format)")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()

	if *loss < 0 || *loss >= 1 {
		fmt.Fprintf(os.Stderr, "Error: loss must be in [0,1), got %g\n", *loss)
		os.Exit(1)
	}

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Default()
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *protocolLog != "" {
		cfg.ProtocolLog = *protocolLog
	}

	opts := Options{
		Config:    cfg,
		Transport: *transportFl,
		Loss:      *loss,
		Messages:  *messages,
		CertSize:  *certSize,
		PSK:       []byte(*psk),
		Logger:    logger,
	}

	var loggers []dtlslog.Logger
	var fileLogger *dtlslog.FileLogger
	if cfg.ProtocolLog != "" {
		fileLogger, err = dtlslog.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create protocol logger: %v\n", err)
			os.Exit(1)
		}
		loggers = append(loggers, fileLogger)
		logger.Info("protocol logging", "path", cfg.ProtocolLog)
	}
	if level <= slog.LevelDebug {
		loggers = append(loggers, dtlslog.NewSlogAdapter(logger))
	}
	// Only set the logger when non-nil to avoid a typed-nil interface.
	if len(loggers) > 0 {
		opts.ProtocolLogger = dtlslog.NewMultiLogger(loggers...)
	}

	report, err := Run(opts)
	if fileLogger != nil {
		if cerr := fileLogger.Close(); cerr != nil {
			logger.Warn("closing protocol log", "error", cerr)
		}
	}
	if report != nil {
		printReport(report)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func printReport(r *Report) {
	fmt.Println("=== DTLS Loopback ===")
	fmt.Printf("Transport:  %s\n", r.Transport)
	fmt.Printf("Suite:      %s\n", r.Suite)
	fmt.Printf("Handshake:  %s\n", r.HandshakeTime.Round(time.Millisecond))
	fmt.Printf("Dropped:    %d datagrams\n", r.Dropped)
	fmt.Printf("Echoed:     %d records\n", r.Echoed)
	fmt.Printf("Client:     %s (read epoch %d, write epoch %d)\n", r.ClientID, r.ClientEpochs[0], r.ClientEpochs[1])
	fmt.Printf("Server:     %s (read epoch %d, write epoch %d)\n", r.ServerID, r.ServerEpochs[0], r.ServerEpochs[1])
}
