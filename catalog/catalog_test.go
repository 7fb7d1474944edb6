package catalog_test

import (
	"testing"

	"github.com/example/xtirq/catalog"
)

func TestLookupOutOfRange(t *testing.T) {
	c := catalog.New(catalog.CoreTimer0)
	if _, ok := c.Lookup(-1); ok {
		t.Fatalf("Lookup(-1) should not be found")
	}
	if _, ok := c.Lookup(32); ok {
		t.Fatalf("Lookup(32) should not be found")
	}
}

func TestNMIReservedAndNonMaskable(t *testing.T) {
	c := catalog.New(catalog.CoreTimer0)
	entry, ok := c.Lookup(14)
	if !ok {
		t.Fatalf("line 14 should exist")
	}
	if entry.Priority != 7 {
		t.Errorf("NMI priority = %d, want 7", entry.Priority)
	}
	for cpu := 0; cpu < catalog.NumCPUs; cpu++ {
		if entry.Class[cpu] != catalog.ReservedByDesign {
			t.Errorf("NMI class[%d] = %v, want ReservedByDesign", cpu, entry.Class[cpu])
		}
	}
}

func TestCoreTimerSelection(t *testing.T) {
	cases := []struct {
		owned        catalog.CoreTimer
		reservedLine int
		specialLines []int
	}{
		{catalog.CoreTimer0, 6, []int{15, 16}},
		{catalog.CoreTimer1, 15, []int{6, 16}},
		{catalog.CoreTimer2, 16, []int{6, 15}},
	}
	for _, tc := range cases {
		c := catalog.New(tc.owned)
		entry, _ := c.Lookup(tc.reservedLine)
		for cpu := 0; cpu < catalog.NumCPUs; cpu++ {
			if entry.Class[cpu] != catalog.ReservedByDesign {
				t.Errorf("owned=%v line %d class[%d] = %v, want ReservedByDesign", tc.owned, tc.reservedLine, cpu, entry.Class[cpu])
			}
		}
		for _, line := range tc.specialLines {
			se, _ := c.Lookup(line)
			for cpu := 0; cpu < catalog.NumCPUs; cpu++ {
				if se.Class[cpu] != catalog.Special {
					t.Errorf("owned=%v line %d class[%d] = %v, want Special", tc.owned, line, cpu, se.Class[cpu])
				}
			}
		}
	}
}

func TestNormalLinesAllocatable(t *testing.T) {
	c := catalog.New(catalog.CoreTimer0)
	for _, line := range []int{9, 12, 13, 17, 18, 19, 20, 21, 23} {
		entry, ok := c.Lookup(line)
		if !ok {
			t.Fatalf("line %d should exist", line)
		}
		if entry.Class[0] != catalog.Normal || entry.Class[1] != catalog.Normal {
			t.Errorf("line %d class = %v, want Normal on both CPUs", line, entry.Class)
		}
	}
}
