// Command irqdemo wires the interrupt allocation core to a pair of
// simulated CPUs and two demo sources: a forced internal timer and a
// shared status-register source, optionally backed by a real serial port.
// It runs until interrupted, printing every dispatched interrupt.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/example/xtirq"
	"github.com/example/xtirq/catalog"
	"github.com/example/xtirq/devices"
	"github.com/example/xtirq/hostplatform"
	"github.com/example/xtirq/registry"
	"github.com/example/xtirq/serialbridge"
)

var (
	timerPeriod = flag.Duration("timer-period", 500*time.Millisecond, "period of the simulated core-timer interrupt")
	serialPort  = flag.String("serial", "", "serial device to poll for shared-line status bytes (disabled if empty)")
	baudRate    = flag.Int("baud", 115200, "baud rate for -serial")
	debug       = flag.Bool("debug", false, "enable allocator debug logging")
	showVersion = flag.Bool("version", false, "show version and exit")
)

const version = "1.0.0"

var savedTermState *term.State

func setupTerminal() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	state, err := term.GetState(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("get terminal state: %w", err)
	}
	savedTermState = state
	if _, err := term.MakeRaw(int(os.Stdin.Fd())); err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}
	return nil
}

func restoreTerminal() {
	if savedTermState != nil && term.IsTerminal(int(os.Stdin.Fd())) {
		term.Restore(int(os.Stdin.Fd()), savedTermState)
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("irqdemo v%s\n", version)
		os.Exit(0)
	}

	logger := log.New(os.Stderr, "irqdemo: ", log.LstdFlags)

	cat := catalog.New(catalog.CoreTimer0)
	reg := registry.New()
	sim := hostplatform.NewSimulator()
	alloc := xtirq.New(cat, reg, sim, xtirq.WithLogger(logger))
	alloc.Debug = *debug

	worker, err := hostplatform.NewCPUWorker(0)
	if err != nil {
		logger.Printf("cannot pin to a host CPU (%v); continuing unpinned", err)
		worker = nil
	} else {
		defer worker.Stop()
	}
	runOnCPU0 := func(fn func()) {
		if worker != nil {
			worker.Run(fn)
			return
		}
		fn()
	}

	ctx := hostplatform.WithCPU(context.Background(), 0)

	var timerHandle *xtirq.Handle
	timerHandle, err = alloc.Alloc(ctx, xtirq.SourceCoreTimer1, 0, func(any) {
		logger.Printf("core timer fired on line %d", timerHandle.Line())
	}, nil)
	if err != nil {
		logger.Fatalf("allocate core timer: %v", err)
	}

	status := devices.NewStatusSource()
	var handlerA *xtirq.Handle
	handlerA, err = alloc.AllocWithStatus(ctx, 1, xtirq.Shared, status.Register(), 0x1,
		func(any) { logger.Printf("shared line %d: condition A", handlerA.Line()) }, nil)
	if err != nil {
		logger.Fatalf("allocate shared handler A: %v", err)
	}
	handlerB, err := alloc.AllocWithStatus(ctx, 2, xtirq.Shared, status.Register(), 0x2,
		func(any) { logger.Printf("shared line %d: condition B", handlerA.Line()) }, nil)
	if err != nil {
		logger.Fatalf("allocate shared handler B: %v", err)
	}
	logger.Printf("core timer -> line %d, shared status source -> line %d", timerHandle.Line(), handlerA.Line())

	ticker := devices.NewTimerSource(*timerPeriod)
	ticker.Start(func() {
		runOnCPU0(func() { sim.RaiseIRQ(timerHandle.Line(), 0) })
	})
	defer ticker.Stop()

	var bridge *serialbridge.Bridge
	if *serialPort != "" {
		bridge, err = serialbridge.Open(*serialPort, *baudRate, status, logger, *debug)
		if err != nil {
			logger.Fatalf("open serial bridge: %v", err)
		}
		bridge.Run(200*time.Millisecond, func() {
			runOnCPU0(func() { sim.RaiseIRQ(handlerA.Line(), 0) })
		})
		defer bridge.Stop()
	} else {
		// No hardware attached: alternate the two status conditions so the
		// shared dispatcher has something to filter.
		go func() {
			tick := time.NewTicker(*timerPeriod * 3)
			defer tick.Stop()
			toggle := false
			for range tick.C {
				toggle = !toggle
				if toggle {
					status.SetBit(0x1)
				} else {
					status.SetBit(0x2)
				}
				runOnCPU0(func() { sim.RaiseIRQ(handlerA.Line(), 0) })
				status.ClearBit(0x3)
			}
		}()
	}

	if err := setupTerminal(); err != nil {
		logger.Printf("terminal setup: %v", err)
	}
	defer restoreTerminal()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	restoreTerminal()
	_ = alloc.Free(ctx, handlerB)
	_ = alloc.Free(ctx, handlerA)
	_ = alloc.Free(ctx, timerHandle)
	logger.Printf("shutting down")
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "irqdemo drives the interrupt allocation core against two simulated CPUs.\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
}
