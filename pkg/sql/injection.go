package sql

import (
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a parameter value that looks like SQL injection.
type InjectionCheckResult struct {
	ParamName   string // Parameter whose value was flagged
	ParamValue  string // The flagged string (a single item for list parameters)
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// CheckParameterForInjection runs libinjection over a parameter value.
//
// Strings are checked directly and lists item by item. Other values cannot
// carry injected SQL once cast, so they always pass. Returns nil when the
// value is clean.
//
// Example:
//
//	CheckParameterForInjection("name", "O'Brien")               // nil
//	CheckParameterForInjection("name", "x' OR '1'='1")          // flagged
//	CheckParameterForInjection("tags", []string{"a", "1' OR 1=1 --"}) // flagged
func CheckParameterForInjection(paramName string, value any) *InjectionCheckResult {
	if s, ok := value.(string); ok {
		return checkString(paramName, s)
	}
	items, ok := toList(value)
	if !ok {
		return nil
	}
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if result := checkString(paramName, s); result != nil {
			return result
		}
	}
	return nil
}

func checkString(paramName, value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		ParamName:   paramName,
		ParamValue:  value,
		Fingerprint: string(fingerprint),
	}
}

// CheckAllParameters checks every parameter and returns the flagged ones
// sorted by name. Returns nil when all values are clean.
func CheckAllParameters(params map[string]any) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for name, value := range params {
		if result := CheckParameterForInjection(name, value); result != nil {
			results = append(results, result)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].ParamName < results[j].ParamName
	})
	return results
}
