// Command isn-term bridges a process's stdin/stdout to the ASCII
// terminal passthrough channel of an ISN device reachable over a
// pseudo-terminal — a minimal reference implementation of the
// host-side IDM/telnet tooling a device expects to talk to, not part
// of the protocol core itself.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	isn "github.com/isotel-go/isn-core"
	"github.com/isotel-go/isn-core/internal/logging"
	"github.com/isotel-go/isn-core/internal/msg"
	"github.com/isotel-go/isn-core/phy"
)

func main() {
	var (
		path    = flag.String("path", "", "slave pty path of a running isn-device (from its startup banner)")
		verbose = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: isn-term --path /dev/pts/N")
		os.Exit(2)
	}

	device, err := phy.OpenRaw(*path)
	if err != nil {
		logger.Error("failed to open device", "path", *path, "error", err)
		os.Exit(1)
	}

	identityEntry, _ := isn.NewIdentityEntry(0, 0, 0)
	table, err := msg.NewTable(msg.TableOptions{}, identityEntry)
	if err != nil {
		logger.Error("failed to build placeholder table", "error", err)
		os.Exit(1)
	}

	stack := isn.NewStack(device, table, isn.DefaultStackOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := stack.Start(ctx); err != nil {
		logger.Error("failed to start stack", "error", err)
		os.Exit(1)
	}

	go pumpTerminalIn(ctx, stack)
	go pumpTerminalOut(ctx, stack)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()
	_ = stack.Stop()
}

// pumpTerminalOut relays stdin keystrokes straight to the device,
// bypassing frame encoding — terminal bytes are never framed.
func pumpTerminalOut(ctx context.Context, stack *isn.Stack) {
	buf := make([]byte, 256)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if _, werr := stack.Frame.WriteRaw(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				logging.Default().Warn("stdin read error", "error", err)
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// pumpTerminalIn relays terminal-passthrough bytes received on the
// frame layer's Other sink to stdout.
func pumpTerminalIn(ctx context.Context, stack *isn.Stack) {
	for {
		b, err := stack.Frame.Other(ctx)
		if err != nil {
			return
		}
		os.Stdout.Write(b)
	}
}
