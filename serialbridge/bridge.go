// Package serialbridge backs a devices.StatusSource with a real serial
// port: bytes read from a physical board are folded into the status
// register the Shared Dispatcher filters on, so cmd/irqdemo can drive the
// allocation core from actual hardware instead of only a timer.
package serialbridge

import (
	"fmt"
	"log"
	"sync"
	"syscall"
	"time"

	"go.bug.st/serial"

	"github.com/example/xtirq/devices"
)

// resetDelay covers the reset pulse a USB-CDC serial port's DTR line
// triggers on many microcontroller boards when first opened.
const resetDelay = 2 * time.Second

// NoResponseError reports that no byte arrived from the port within the
// requested timeout.
type NoResponseError time.Duration

func (e NoResponseError) Error() string {
	return fmt.Sprintf("serialbridge: no response after %v", time.Duration(e))
}

// Bridge polls a serial port on a background goroutine and folds every
// byte it reads into a devices.StatusSource's register, ORing the byte's
// value in as a mask of condition bits.
type Bridge struct {
	port   serial.Port
	status *devices.StatusSource
	log    *log.Logger
	debug  bool

	mu      sync.Mutex
	stop    chan struct{}
	running bool
}

// Open connects to deviceName at baudRate and returns a Bridge feeding
// status. Opening the port blocks for resetDelay to ride out a USB-CDC
// reset pulse, matching the delay the board itself imposes.
func Open(deviceName string, baudRate int, status *devices.StatusSource, logger *log.Logger, debug bool) (*Bridge, error) {
	mode := &serial.Mode{BaudRate: baudRate, DataBits: 8,
		Parity: serial.NoParity, StopBits: serial.OneStopBit}
	port, err := serial.Open(deviceName, mode)
	if err != nil {
		return nil, fmt.Errorf("serialbridge: open %s: %w", deviceName, err)
	}
	logger.Printf("serialbridge: port %s open, waiting %.0fs for reset", deviceName, resetDelay.Seconds())
	time.Sleep(resetDelay)
	return &Bridge{port: port, status: status, log: logger, debug: debug}, nil
}

// Run starts the polling goroutine: every readTimeout it attempts a read,
// and on success ORs the byte read into the status register and invokes
// raise, the same way a shared UART's interrupt-identification register
// gets a new condition bit set right before the line itself asserts.
// NoResponseError from a timed-out read is swallowed; any other read
// error stops the goroutine, and is logged only when debug is set.
func (b *Bridge) Run(readTimeout time.Duration, raise func()) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.stop = make(chan struct{})
	stop := b.stop
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			n, err := b.readByte(readTimeout)
			switch {
			case err == nil:
				b.status.SetBit(uint32(n))
				raise()
			case isNoResponse(err):
				// normal poll timeout, try again
			default:
				if b.debug {
					b.log.Printf("serialbridge: read error, stopping: %v", err)
				}
				return
			}
		}
	}()
}

// Stop halts the polling goroutine and closes the port.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		close(b.stop)
		b.running = false
	}
	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port = nil
	return err
}

func (b *Bridge) readByte(timeout time.Duration) (byte, error) {
	buf := make([]byte, 1)
	var n int
	var err error

	// The loop handles EINTR only, which Go's goroutine scheduler can
	// surface on a blocking syscall read.
	if err := b.port.SetReadTimeout(timeout); err != nil {
		return 0, err
	}
	for {
		n, err = b.port.Read(buf)
		if !isRetryableSyscallError(err) {
			break
		}
		if n != 0 {
			panic("serialbridge: bytes returned despite EINTR")
		}
	}
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, NoResponseError(timeout)
	}
	return buf[0], nil
}

func isRetryableSyscallError(err error) bool {
	const eIntr = 4
	if errno, ok := err.(syscall.Errno); ok {
		return errno == eIntr
	}
	return false
}

func isNoResponse(err error) bool {
	_, ok := err.(NoResponseError)
	return ok
}
