package blockdev

import (
	"github.com/minikern/minikern/kstats"
)

type statsStruct struct {
	ReadOps  kstats.Total
	WriteOps kstats.Total
}

type globalsStruct struct {
	stats statsStruct
}

var globals globalsStruct

func init() {
	kstats.Register("blockdev", "", &globals.stats)
}
