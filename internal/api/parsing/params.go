package parsing

import (
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// ParseIDList parses a comma separated list of entry IDs. Empty elements are
// skipped.
func ParseIDList(value, fieldName string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, NewParsingError("%s: invalid entry ID %q", fieldName, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseCPUs parses a comma separated list of CPU numbers. An empty value
// selects every CPU.
func ParseCPUs(value string) (sets.Set[int], error) {
	cpus := sets.New[int]()
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cpu, err := strconv.Atoi(part)
		if err != nil || cpu < 0 {
			return nil, NewParsingError("cpus: invalid CPU %q", part)
		}
		cpus.Insert(cpu)
	}
	return cpus, nil
}

// ParsePositiveInt parses value as an integer >= 1, returning defaultVal when
// it is empty. Values above maxVal are clamped.
func ParsePositiveInt(value, fieldName string, defaultVal, maxVal int) (int, error) {
	if value == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, NewParsingError("%s must be a positive integer", fieldName)
	}
	return min(n, maxVal), nil
}
