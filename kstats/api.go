// Package kstats implements easy to use in-process statistics collection
// and reporting. Statistics start at zero and grow as they are added to.
//
// The statistics provided include a simple totaler (Total, with the Totaler
// interface) and a count/total/mean statistic (Average, with the Averager
// interface).
//
// Each statistic must have a unique Name. One or more statistics is placed
// in a structure and registered, with a name, via a call to Register()
// before being used. The registered statistics can be dumped individually
// or in bulk with SprintStats().
package kstats

import (
	"sync/atomic"
)

// A Totaler can be incremented, or added to, and tracks the total of all
// values added.
//
// Adding a negative value is not supported.
type Totaler interface {
	Increment()
	Add(value uint64)
	TotalGet() (total uint64)
	Sprint(pkgName string, statsGroupName string) (values string)
}

// An Averager is a Totaler with count and mean functions added.
type Averager interface {
	Totaler
	CountGet() (count uint64)
	AverageGet() (avg uint64)
}

// Register and initialize a set of statistics.
//
// statsStruct is a pointer to a structure which has one or more fields
// holding statistics. It may also contain fields that are not kstats types;
// they are ignored.
//
// The combination of pkgName and statsGroupName must be unique. One or the
// other, but not both, can be the empty string. Whitespace, '"', '*', and
// ':' are not allowed in either name.
func Register(pkgName string, statsGroupName string, statsStruct interface{}) {
	register(pkgName, statsGroupName, statsStruct)
}

// UnRegister a set of statistics.
//
// Once unregistered, the same or a different set of statistics can be
// registered using the same name.
func UnRegister(pkgName string, statsGroupName string) {
	unRegister(pkgName, statsGroupName)
}

// SprintStats returns the value of all statistics associated with pkgName
// and statsGroupName as a string, one statistic per line.
//
// Use "*" to select all package names with a given group name, all groups
// with a given package name, or all groups.
func SprintStats(pkgName string, statsGroupName string) (values string) {
	return sprintStats(pkgName, statsGroupName)
}

// Total is a simple totaler. It supports the Totaler interface.
//
// Name must be unique within statistics in the structure. If it is "" then
// Register() will assign a name based on the name of the field.
type Total struct {
	total uint64 // Ensure 64-bit alignment
	Name  string
}

// Add a value to the total.
func (this *Total) Add(value uint64) {
	atomic.AddUint64(&this.total, value)
}

// Increment adds 1 to the total.
func (this *Total) Increment() {
	atomic.AddUint64(&this.total, 1)
}

func (this *Total) TotalGet() uint64 {
	return atomic.LoadUint64(&this.total)
}

// Sprint returns a string with the statistic's value.
func (this *Total) Sprint(pkgName string, statsGroupName string) string {
	return this.sprint(pkgName, statsGroupName)
}

// Average counts a number of items and their average size. It supports the
// Averager interface.
//
// Name must be unique within statistics in the structure. If it is "" then
// Register() will assign a name based on the name of the field.
type Average struct {
	count uint64 // Ensure 64-bit alignment
	total uint64 // Ensure 64-bit alignment
	Name  string
}

// Add a value to the average statistics.
func (this *Average) Add(value uint64) {
	atomic.AddUint64(&this.total, value)
	atomic.AddUint64(&this.count, 1)
}

// Increment adds a value of 1 to the average statistics.
func (this *Average) Increment() {
	this.Add(1)
}

func (this *Average) CountGet() uint64 {
	return atomic.LoadUint64(&this.count)
}

func (this *Average) TotalGet() uint64 {
	return atomic.LoadUint64(&this.total)
}

func (this *Average) AverageGet() uint64 {
	count := atomic.LoadUint64(&this.count)
	if 0 == count {
		return 0
	}
	return atomic.LoadUint64(&this.total) / count
}

// Sprint returns a string with the statistic's value.
func (this *Average) Sprint(pkgName string, statsGroupName string) string {
	return this.sprint(pkgName, statsGroupName)
}
