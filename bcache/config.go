package bcache

import (
	"github.com/minikern/minikern/kstats"
)

type statsStruct struct {
	Hits              kstats.Total
	Misses            kstats.Total
	Recycles          kstats.Total
	TransportReads    kstats.Total
	TransportWrites   kstats.Total
	RecycleScanLength kstats.Average // slots examined per recycle scan
}

type globalsStruct struct {
	stats statsStruct
}

var globals globalsStruct

func init() {
	kstats.Register("bcache", "", &globals.stats)
}
