package memory

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ersonp/bookspace/internal/domain/ports"
)

// Matches reports whether doc satisfies every filter.
func Matches(doc ports.Document, filters []ports.Filter) bool {
	for _, f := range filters {
		v, ok := doc[f.Field]
		if !ok {
			return false
		}
		if f.Op == ports.OpArrayContains {
			if !holds(v, f.Value) {
				return false
			}
			continue
		}
		if !equal(v, f.Value) {
			return false
		}
	}
	return true
}

// holds reports whether list is a slice with an element equal to v.
func holds(list, v any) bool {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if equal(rv.Index(i).Interface(), v) {
			return true
		}
	}
	return false
}

// Compare orders two field values: missing values first, then numbers,
// times, strings and anything else by its printed form.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp(ra, rb)
	}
	switch ra {
	case rankNumber:
		fa, _ := number(a)
		fb, _ := number(b)
		return cmpFloat(fa, fb)
	case rankTime:
		return a.(time.Time).Compare(b.(time.Time))
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankOther:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	default:
		return 0
	}
}

const (
	rankNil = iota
	rankNumber
	rankTime
	rankString
	rankOther
)

func rank(v any) int {
	if v == nil {
		return rankNil
	}
	if _, ok := number(v); ok {
		return rankNumber
	}
	switch v.(type) {
	case time.Time:
		return rankTime
	case string:
		return rankString
	default:
		return rankOther
	}
}

func number(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

func equal(a, b any) bool {
	if na, ok := number(a); ok {
		nb, ok := number(b)
		return ok && na == nb
	}
	return reflect.DeepEqual(a, b)
}

func cmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
