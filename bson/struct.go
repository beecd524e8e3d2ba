package bson

import (
	"reflect"
	"strings"
	"sync"
)

type fieldInfo struct {
	name        string
	index       []int
	conditional bool // omitempty: skip the field when it holds its zero value
}

type structInfo struct {
	list []*fieldInfo
}

var defaultFieldInfo = &fieldInfo{}

func compileStructInfo(t reflect.Type, depth map[string]int, index []int, si *structInfo) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		switch {
		case f.PkgPath != "" && !f.Anonymous:
			// unexported field
		case f.Anonymous && f.Type.Kind() == reflect.Struct:
			compileStructInfo(f.Type, depth, append(index, i), si)
		default:
			fi := &fieldInfo{name: f.Name}
			tag := f.Tag.Get("bson")
			parts := strings.Split(tag, ",")
			if parts[0] != "" && parts[0] != "-" {
				fi.name = parts[0]
			}
			if parts[0] == "-" {
				continue
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					fi.conditional = true
				}
			}

			d, found := depth[fi.name]
			if !found {
				d = 1 << 30
			}
			fieldIndex := make([]int, len(index)+1)
			copy(fieldIndex, index)
			fieldIndex[len(index)] = i

			switch {
			case len(index) == d:
				// shadowed at the same depth: drop the earlier entry
				j := 0
				for _, existing := range si.list {
					if existing.name != fi.name {
						si.list[j] = existing
						j++
					}
				}
				si.list = si.list[:j]
			case len(index) < d:
				fi.index = fieldIndex
				depth[fi.name] = len(index)
				si.list = append(si.list, fi)
			}
		}
	}
}

var (
	structInfoMu    sync.RWMutex
	structInfoCache = make(map[reflect.Type]*structInfo)
)

func structInfoForType(t reflect.Type) *structInfo {
	structInfoMu.RLock()
	si, ok := structInfoCache[t]
	structInfoMu.RUnlock()
	if ok {
		return si
	}

	structInfoMu.Lock()
	defer structInfoMu.Unlock()
	if si, ok := structInfoCache[t]; ok {
		return si
	}

	si = &structInfo{}
	compileStructInfo(t, make(map[string]int), nil, si)
	structInfoCache[t] = si
	return si
}
