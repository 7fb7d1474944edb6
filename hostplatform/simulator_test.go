package hostplatform_test

import (
	"testing"

	"github.com/example/xtirq/hostplatform"
)

func TestDefaultVectorIsUnhandled(t *testing.T) {
	sim := hostplatform.NewSimulator()
	if sim.HasNonDefaultVector(9, 0) {
		t.Fatalf("fresh simulator should report default vector")
	}
}

func TestInstallAndRestoreVector(t *testing.T) {
	sim := hostplatform.NewSimulator()
	called := false
	sim.InstallVector(9, 0, func(arg any) { called = true }, nil)
	if !sim.HasNonDefaultVector(9, 0) {
		t.Fatalf("expected non-default vector after install")
	}
	sim.RaiseIRQ(9, 0)
	if !called {
		t.Fatalf("handler was not invoked")
	}
	sim.RestoreDefaultVector(9, 0)
	if sim.HasNonDefaultVector(9, 0) {
		t.Fatalf("expected default vector after restore")
	}
}

func TestEnableMaskRoundTrip(t *testing.T) {
	sim := hostplatform.NewSimulator()
	sim.EnableLine(3, 0)
	sim.EnableLine(9, 0)
	if mask := sim.EnabledMask(0); mask != (1<<3 | 1<<9) {
		t.Fatalf("EnabledMask(0) = %#x, want %#x", mask, 1<<3|1<<9)
	}
	sim.DisableLine(3, 0)
	if mask := sim.EnabledMask(0); mask != 1<<9 {
		t.Fatalf("EnabledMask(0) after disable = %#x, want %#x", mask, 1<<9)
	}
	sim.SetEnabledMask(0, 0)
	if mask := sim.EnabledMask(0); mask != 0 {
		t.Fatalf("EnabledMask(0) after SetEnabledMask(0) = %#x, want 0", mask)
	}
}

func TestRoutingMatrix(t *testing.T) {
	sim := hostplatform.NewSimulator()
	sim.Route(0, 40, 9)
	line, ok := sim.RoutedLine(0, 40)
	if !ok || line != 9 {
		t.Fatalf("RoutedLine(0, 40) = (%d, %v), want (9, true)", line, ok)
	}
	if _, ok := sim.RoutedLine(1, 40); ok {
		t.Fatalf("RoutedLine(1, 40) should be unset, different cpu")
	}
}

func TestCPUWorkerRunsOnBoundGoroutine(t *testing.T) {
	w, err := hostplatform.NewCPUWorker(0)
	if err != nil {
		t.Skipf("cannot pin CPU affinity in this environment: %v", err)
	}
	defer w.Stop()

	var observedCPU int = -1
	w.Run(func() { observedCPU = w.CPU() })
	if observedCPU != 0 {
		t.Fatalf("work did not run on worker, got cpu=%d", observedCPU)
	}
}
