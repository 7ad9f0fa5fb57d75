package kstats

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

type statsGroup struct {
	pkgName        string
	statsGroupName string
	statistics     map[string]Totaler // key is the statistic Name
}

type registryStruct struct {
	sync.Mutex
	groups map[string]*statsGroup // key is pkgName + ":" + statsGroupName
}

var registry registryStruct

func init() {
	registry.groups = make(map[string]*statsGroup)
}

func checkName(name string) {
	if strings.ContainsAny(name, " \t\n\"*:") {
		panic(fmt.Sprintf("kstats: name %q contains a disallowed character", name))
	}
}

func register(pkgName string, statsGroupName string, statsStruct interface{}) {
	checkName(pkgName)
	checkName(statsGroupName)
	if "" == pkgName && "" == statsGroupName {
		panic("kstats.Register(): pkgName and statsGroupName cannot both be empty")
	}

	structAsValue := reflect.ValueOf(statsStruct)
	if reflect.Ptr != structAsValue.Kind() || reflect.Struct != structAsValue.Elem().Kind() {
		panic(fmt.Sprintf("kstats.Register(): statsStruct must be a pointer to a struct, got %T", statsStruct))
	}
	structAsElem := structAsValue.Elem()
	structAsType := structAsElem.Type()

	group := &statsGroup{
		pkgName:        pkgName,
		statsGroupName: statsGroupName,
		statistics:     make(map[string]Totaler),
	}

	for i := 0; i < structAsElem.NumField(); i++ {
		// unexported fields cannot be statistics (and cannot be reached
		// via reflection anyway)
		if "" != structAsType.Field(i).PkgPath {
			continue
		}

		fieldValue := structAsElem.Field(i)
		if reflect.Struct != fieldValue.Kind() || !fieldValue.CanAddr() {
			continue
		}

		statAsTotaler, ok := fieldValue.Addr().Interface().(Totaler)
		if !ok {
			// not a statistic; skip the field
			continue
		}

		// Assign the field's name if the statistic wasn't given one
		nameField := fieldValue.FieldByName("Name")
		if "" == nameField.String() {
			nameField.SetString(structAsType.Field(i).Name)
		}
		statName := nameField.String()
		checkName(statName)

		if _, dup := group.statistics[statName]; dup {
			panic(fmt.Sprintf("kstats.Register(): duplicate statistic name %q in group %v:%v",
				statName, pkgName, statsGroupName))
		}
		group.statistics[statName] = statAsTotaler
	}

	key := pkgName + ":" + statsGroupName

	registry.Lock()
	if _, dup := registry.groups[key]; dup {
		registry.Unlock()
		panic(fmt.Sprintf("kstats.Register(): stats group %v:%v registered twice", pkgName, statsGroupName))
	}
	registry.groups[key] = group
	registry.Unlock()
}

func unRegister(pkgName string, statsGroupName string) {
	key := pkgName + ":" + statsGroupName

	registry.Lock()
	delete(registry.groups, key)
	registry.Unlock()
}

func sprintStats(pkgName string, statsGroupName string) (values string) {
	var selected []*statsGroup

	registry.Lock()
	for _, group := range registry.groups {
		if ("*" == pkgName || group.pkgName == pkgName) &&
			("*" == statsGroupName || group.statsGroupName == statsGroupName) {
			selected = append(selected, group)
		}
	}
	registry.Unlock()

	sort.Slice(selected, func(i, j int) bool {
		if selected[i].pkgName != selected[j].pkgName {
			return selected[i].pkgName < selected[j].pkgName
		}
		return selected[i].statsGroupName < selected[j].statsGroupName
	})

	for _, group := range selected {
		statNames := make([]string, 0, len(group.statistics))
		for statName := range group.statistics {
			statNames = append(statNames, statName)
		}
		sort.Strings(statNames)

		for _, statName := range statNames {
			values += group.statistics[statName].Sprint(group.pkgName, group.statsGroupName)
		}
	}
	return
}

func statPrefix(pkgName string, statsGroupName string, statName string) string {
	switch {
	case "" == pkgName:
		return statsGroupName + "." + statName
	case "" == statsGroupName:
		return pkgName + "." + statName
	default:
		return pkgName + "." + statsGroupName + "." + statName
	}
}

func (this *Total) sprint(pkgName string, statsGroupName string) string {
	return fmt.Sprintf("%s total %d\n", statPrefix(pkgName, statsGroupName, this.Name), this.TotalGet())
}

func (this *Average) sprint(pkgName string, statsGroupName string) string {
	return fmt.Sprintf("%s count %d total %d average %d\n",
		statPrefix(pkgName, statsGroupName, this.Name), this.CountGet(), this.TotalGet(), this.AverageGet())
}
