package ksync

import (
	"github.com/minikern/minikern/kstats"
)

type statsStruct struct {
	SleepLockWaits kstats.Total // Lock() calls that had to sleep at least once
	CondWaits      kstats.Total // Cond.Wait() calls
	SemaphoreWaits kstats.Total // Acquire() calls that had to sleep at least once
}

type globalsStruct struct {
	stats statsStruct
}

var globals globalsStruct

func init() {
	kstats.Register("ksync", "", &globals.stats)
}
