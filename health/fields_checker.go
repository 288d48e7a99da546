package health

import (
	"context"
	"fmt"
	"slices"
)

// FieldLister 列出已注册的格点场名称。
type FieldLister interface {
	Names() []string
}

// FieldsChecker 要求 want 中的格点场均已注册。
func FieldsChecker(l FieldLister, want []string) Checker {
	return func(context.Context) error {
		have := l.Names()
		var missing []string
		for _, name := range want {
			if !slices.Contains(have, name) {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("fields not loaded: %v", missing)
		}
		return nil
	}
}
