package cluster

import (
	"sort"
	"strings"
)

// LabelSelector is an equality-based k8s label selector.
type LabelSelector map[string]string

// convert to string value in form of query string.
//
// Keys are sorted so the same selector always renders the same string.
func (ls LabelSelector) QueryString() string {
	if len(ls) == 0 {
		return ""
	}

	keys := make([]string, 0, len(ls))
	for k := range ls {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	terms := make([]string, 0, len(keys))
	for _, k := range keys {
		terms = append(terms, k+"="+ls[k])
	}
	return strings.Join(terms, ",")
}
