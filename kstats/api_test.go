package kstats

import (
	"strings"
	"sync"
	"testing"
)

type testStats struct {
	Hits        Total
	Misses      Total
	ScanLength  Average
	notAStat    int
	AlsoNotStat string
}

func TestRegisterAndSprint(t *testing.T) {
	var stats testStats

	Register("bcachetest", "pool", &stats)
	defer UnRegister("bcachetest", "pool")

	stats.Hits.Increment()
	stats.Hits.Increment()
	stats.Misses.Add(3)
	stats.ScanLength.Add(10)
	stats.ScanLength.Add(20)

	if 2 != stats.Hits.TotalGet() {
		t.Errorf("Hits.TotalGet() == %v, expected 2", stats.Hits.TotalGet())
	}
	if 3 != stats.Misses.TotalGet() {
		t.Errorf("Misses.TotalGet() == %v, expected 3", stats.Misses.TotalGet())
	}
	if 2 != stats.ScanLength.CountGet() || 15 != stats.ScanLength.AverageGet() {
		t.Errorf("ScanLength count %v average %v, expected 2 and 15",
			stats.ScanLength.CountGet(), stats.ScanLength.AverageGet())
	}

	dump := SprintStats("bcachetest", "pool")
	for _, want := range []string{
		"bcachetest.pool.Hits total 2",
		"bcachetest.pool.Misses total 3",
		"bcachetest.pool.ScanLength count 2 total 30 average 15",
	} {
		if !strings.Contains(dump, want) {
			t.Errorf("SprintStats() output missing %q:\n%v", want, dump)
		}
	}

	// wildcard selection
	if !strings.Contains(SprintStats("*", "*"), "bcachetest.pool.Hits") {
		t.Errorf("SprintStats(\"*\", \"*\") did not include registered group")
	}
}

func TestAverageEmpty(t *testing.T) {
	var avg Average
	if 0 != avg.AverageGet() {
		t.Errorf("AverageGet() of empty Average == %v, expected 0", avg.AverageGet())
	}
}

func TestUnRegisterAllowsReRegister(t *testing.T) {
	var stats1, stats2 testStats

	Register("", "reuse", &stats1)
	UnRegister("", "reuse")
	Register("", "reuse", &stats2)
	UnRegister("", "reuse")
}

func TestConcurrentAdds(t *testing.T) {
	var (
		stats testStats
		wg    sync.WaitGroup
	)

	Register("bcachetest", "concurrent", &stats)
	defer UnRegister("bcachetest", "concurrent")

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				stats.Hits.Increment()
			}
		}()
	}
	wg.Wait()

	if 8000 != stats.Hits.TotalGet() {
		t.Errorf("Hits.TotalGet() == %v after concurrent increments, expected 8000", stats.Hits.TotalGet())
	}
}
