package resource

import (
	"fmt"
	"sort"

	"golang.org/x/text/cases"

	"store_admin/internal/models"
)

// SortEntities returns a sorted copy of items. Strings compare case-folded,
// missing values sort as the empty string and ties keep their original order.
//
// It only ever sees the loaded page, so for collections without server-side
// sorting the order across pages is not globally consistent.
func SortEntities(items []models.Entity, key string, dir models.SortDirection) []models.Entity {
	out := make([]models.Entity, len(items))
	copy(out, items)
	if key == "" || len(out) < 2 {
		return out
	}

	fold := cases.Fold()
	keys := make([]any, len(out))
	for i, item := range out {
		keys[i] = normalize(item.SortValue(key), fold)
	}
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		c := compare(keys[idx[a]], keys[idx[b]])
		if dir == models.Desc {
			return c > 0
		}
		return c < 0
	})

	sorted := make([]models.Entity, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

func normalize(v any, fold cases.Caser) any {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return fold.String(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case float64, bool:
		return t
	}
	return fold.String(fmt.Sprint(v))
}

func compare(a, b any) int {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	case string:
		if y, ok := b.(string); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	// Mixed kinds: fall back to their textual form.
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}
