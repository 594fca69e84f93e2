package store

import "context"

// List reads a newest-first list. A missing key yields an empty list.
func List[T any](ctx context.Context, s *Store, key string) ([]T, error) {
	var items []T
	if _, err := s.Get(ctx, key, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// PushFront prepends item to the list at key, keeping at most max entries.
func PushFront[T any](ctx context.Context, s *Store, key string, item T, max int) error {
	items, err := List[T](ctx, s, key)
	if err != nil {
		return err
	}

	items = append([]T{item}, items...)
	if len(items) > max {
		items = items[:max]
	}
	return s.Set(ctx, key, items)
}
