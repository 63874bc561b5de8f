package strapi

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Query is the filter/sort/pagination/populate/locale descriptor accepted by
// the remote's REST and admin APIs.
type Query struct {
	Sort             []string
	Filters          map[string]interface{}
	Populate         interface{} // "*", []string or a nested map
	Fields           []string
	Pagination       *Pagination
	Locale           string
	PublicationState string
}

// Publication states. The remote defaults to PublicationLive, which hides
// draft entries.
const (
	PublicationLive    = "live"
	PublicationPreview = "preview"
)

type Pagination struct {
	Page      int
	PageSize  int
	Start     int
	Limit     int
	WithCount *bool
}

// Encode serialises q with bracket notation, e.g.
// sort[0]=title:asc&filters[title][$eq]=hello&pagination[pageSize]=10.
func (q *Query) Encode() string {
	if q == nil {
		return ""
	}
	var parts []string
	if len(q.Sort) > 0 {
		encodeBracket("sort", q.Sort, &parts)
	}
	if len(q.Filters) > 0 {
		encodeBracket("filters", q.Filters, &parts)
	}
	if q.Populate != nil {
		encodeBracket("populate", q.Populate, &parts)
	}
	if len(q.Fields) > 0 {
		encodeBracket("fields", q.Fields, &parts)
	}
	if p := q.Pagination; p != nil {
		if p.Page > 0 {
			parts = append(parts, "pagination[page]="+strconv.Itoa(p.Page))
		}
		if p.PageSize > 0 {
			parts = append(parts, "pagination[pageSize]="+strconv.Itoa(p.PageSize))
		}
		if p.Start > 0 {
			parts = append(parts, "pagination[start]="+strconv.Itoa(p.Start))
		}
		if p.Limit > 0 {
			parts = append(parts, "pagination[limit]="+strconv.Itoa(p.Limit))
		}
		if p.WithCount != nil {
			parts = append(parts, "pagination[withCount]="+strconv.FormatBool(*p.WithCount))
		}
	}
	if q.Locale != "" {
		parts = append(parts, "locale="+escape(q.Locale))
	}
	if q.PublicationState != "" {
		parts = append(parts, "publicationState="+escape(q.PublicationState))
	}
	return strings.Join(parts, "&")
}

// FilterEq is shorthand for filters[field][$eq]=value.
func FilterEq(field string, value interface{}) map[string]interface{} {
	return map[string]interface{}{field: map[string]interface{}{"$eq": value}}
}

func encodeBracket(prefix string, v interface{}, parts *[]string) {
	switch t := v.(type) {
	case nil:
		return
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			encodeBracket(prefix+"["+escape(k)+"]", t[k], parts)
		}
	case map[string]string:
		m := make(map[string]interface{}, len(t))
		for k, s := range t {
			m[k] = s
		}
		encodeBracket(prefix, m, parts)
	case []interface{}:
		for i, item := range t {
			encodeBracket(prefix+"["+strconv.Itoa(i)+"]", item, parts)
		}
	case []string:
		for i, item := range t {
			encodeBracket(prefix+"["+strconv.Itoa(i)+"]", item, parts)
		}
	case []int:
		for i, item := range t {
			encodeBracket(prefix+"["+strconv.Itoa(i)+"]", item, parts)
		}
	default:
		*parts = append(*parts, prefix+"="+escape(fmt.Sprint(t)))
	}
}

// The remote's qs parser accepts these unescaped, and logs read better
// without the percent-encoding.
var unescaper = strings.NewReplacer("%3A", ":", "%24", "$", "%2C", ",", "%2A", "*")

func escape(s string) string {
	return unescaper.Replace(url.QueryEscape(s))
}
