package sql

import (
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-hangar/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
)

// ReservedRequestParams select the response format. They are never passed to
// queries.
var ReservedRequestParams = map[string]bool{
	"jsonp":    true,
	"callback": true,
	"template": true,
}

// CastRequestParams converts query string values to typed parameters.
//
// The key prefix decides the type and is removed from the parameter name:
//
//	list:int:ids=1,2,3   ids -> []int64{1, 2, 3}
//	list:tags=a,b        tags -> []string{"a", "b"}
//	int:id=7             id -> int64(7)
//	name=x               name -> "x"
//
// Keys and values are HTML-unescaped and trimmed. List items are split on
// commas; empty items are dropped. When a key repeats, the last value wins.
// A value that is not an integer where one is declared is ErrParameterType.
func CastRequestParams(values url.Values) (map[string]any, error) {
	params := make(map[string]any, len(values))
	for rawKey, rawValues := range values {
		if len(rawValues) == 0 || ReservedRequestParams[rawKey] {
			continue
		}
		key := html.UnescapeString(rawKey)
		value := html.UnescapeString(rawValues[len(rawValues)-1])

		tv := models.ParseTypedVariable(key)
		cast, err := castValue(tv, value)
		if err != nil {
			return nil, err
		}
		params[tv.Name] = cast
	}
	return params, nil
}

func castValue(tv models.TypedVariable, value string) (any, error) {
	switch tv.Type {
	case models.TypeIntList:
		items := splitList(value)
		ints := make([]int64, 0, len(items))
		for _, item := range items {
			n, err := strconv.ParseInt(item, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s item %q is not an integer", apperrors.ErrParameterType, tv, item)
			}
			ints = append(ints, n)
		}
		return ints, nil
	case models.TypeStringList:
		return splitList(value), nil
	case models.TypeInt:
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s value %q is not an integer", apperrors.ErrParameterType, tv, value)
		}
		return n, nil
	default:
		return strings.TrimSpace(value), nil
	}
}

func splitList(value string) []string {
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
