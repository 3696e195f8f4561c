package query

import (
	"slices"
	"strings"
)

// Wire parameter names.
const (
	ParamFilter         = "$filter"
	ParamOrderBy        = "$orderby"
	ParamSkip           = "$skip"
	ParamTop            = "$top"
	ParamSelect         = "$select"
	ParamCount          = "$count"
	ParamIncludeDeleted = "__includedeleted"
)

var reservedParameters = map[string]struct{}{
	ParamFilter:         {},
	ParamOrderBy:        {},
	ParamSkip:           {},
	ParamTop:            {},
	ParamSelect:         {},
	ParamCount:          {},
	ParamIncludeDeleted: {},
	"filter":            {},
	"orderby":           {},
	"skip":              {},
	"top":               {},
	"select":            {},
	"count":             {},
	"includedeleted":    {},
}

// IsReservedParameter reports whether key is owned by the query compiler and
// cannot be supplied as a user parameter. The check is case-sensitive.
func IsReservedParameter(key string) bool {
	if _, ok := reservedParameters[key]; ok {
		return true
	}
	return strings.HasPrefix(key, "$") || strings.HasPrefix(key, "__")
}

// Parameter is a user-defined query string parameter.
type Parameter struct {
	Key   string
	Value string
}

func validateParameterKey(operation, key string) error {
	if key == "" {
		return NewInvalidArgumentError(operation, "key", "parameter key must not be empty")
	}
	if IsReservedParameter(key) {
		return NewInvalidArgumentError(operation, "key", "parameter "+key+" is reserved")
	}
	return nil
}

// sortedParameters orders map entries by key so that the result does not
// depend on map iteration order.
func sortedParameters(params map[string]string) []Parameter {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]Parameter, len(keys))
	for i, k := range keys {
		out[i] = Parameter{Key: k, Value: params[k]}
	}
	return out
}
