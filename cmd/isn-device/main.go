// Command isn-device demonstrates a complete ISN device: a message
// table with a handful of records, a frame layer carrying it over a
// pseudo-terminal, and (optionally) a Prometheus exporter of every
// layer's statistics. It is a demonstration harness outside the core:
// flag parsing, construct, serve loop, signal-driven shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	isn "github.com/isotel-go/isn-core"
	"github.com/isotel-go/isn-core/internal/logging"
	"github.com/isotel-go/isn-core/internal/metrics"
	"github.com/isotel-go/isn-core/internal/msg"
	"github.com/isotel-go/isn-core/internal/msgconfig"
	"github.com/isotel-go/isn-core/phy"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML message-table config; built-in demo table if empty")
		metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9100)")
		verbose    = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	table, identity, err := buildTable(*configPath)
	if err != nil {
		logger.Error("failed to build message table", "error", err)
		os.Exit(1)
	}
	logger.Info("message table ready", "entries", table.Size(), "session_id", identity.SessionID)

	pt, slavePath, err := phy.Open()
	if err != nil {
		logger.Error("failed to open pty", "error", err)
		os.Exit(1)
	}
	defer pt.Close()
	fmt.Printf("isn-device listening on %s\n", slavePath)
	fmt.Printf("connect a peer with: socat -,raw,echo=0 %s\n", slavePath)

	stack := isn.NewStack(pt, table, isn.DefaultStackOptions())

	if *metricsAddr != "" {
		collector := metrics.NewCollector("isn")
		collector.Register("frame", stack.Frame.Stats())
		prometheus.MustRegister(collector)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info("serving metrics", "addr", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := stack.Start(ctx); err != nil {
		logger.Error("failed to start stack", "error", err)
		cancel()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("received shutdown signal")

	cancel()
	done := make(chan struct{})
	go func() {
		_ = stack.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		logger.Warn("stop timed out, exiting anyway")
	}
}

// buildTable loads configPath if given, otherwise returns a small
// built-in demo table: identity plus one LED-like toggle record that
// echoes back whatever was last written.
func buildTable(configPath string) (*msg.Table, isn.Identity, error) {
	if configPath != "" {
		cfg, err := msgconfig.LoadFile(configPath)
		if err != nil {
			return nil, isn.Identity{}, err
		}
		led := newLEDHandler()
		return cfg.BuildTable(map[string]msg.Handler{"led": led.Handle}, 1, 0, 0)
	}

	led := newLEDHandler()
	identityEntry, identity := isn.NewIdentityEntry(1, 0, 0)
	table, err := msg.NewTable(msg.TableOptions{},
		identityEntry,
		msg.Entry{Size: 1, Descriptor: "{:led}={%hu:off,on}", Handler: led.Handle},
	)
	return table, identity, err
}

// ledHandler models a single-byte actuator record: writes update its
// state, reads (self-initiated or peer queries) report it back.
type ledHandler struct{ state byte }

func newLEDHandler() *ledHandler { return &ledHandler{} }

func (h *ledHandler) Handle(input []byte, hasInput bool) ([]byte, bool) {
	if hasInput && len(input) == 1 {
		h.state = input[0]
	}
	return []byte{h.state}, true
}
