// Package ordering keeps a dense, zero-based order field across sibling records.
//
// After every exported mutation the multiset of order values for a slice of N
// siblings is exactly {0, 1, ..., N-1}. Operations never mutate the caller's
// slice; they return a fresh one.
package ordering

import "sort"

// Sequenced is implemented by pointers to records that carry an order value.
// Position reads the order value and SetPosition overwrites it.
type Sequenced[T any] interface {
	*T
	Position() int
	SetPosition(int)
}

// Append returns items with x added at the end. x's order is the sibling count
// before insertion.
func Append[T any, P Sequenced[T]](items []T, x T) []T {
	out := Compact[T, P](items)
	P(&x).SetPosition(len(out))
	return append(out, x)
}

// Remove drops the sibling at the given index of the order-sorted view and
// renumbers the survivors. ok is false when index is out of range.
func Remove[T any, P Sequenced[T]](items []T, index int) (out []T, removed T, ok bool) {
	sorted := Sorted[T, P](items)
	if index < 0 || index >= len(sorted) {
		return sorted, removed, false
	}
	removed = sorted[index]
	out = append(sorted[:index:index], sorted[index+1:]...)
	renumber[T, P](out)
	return out, removed, true
}

// RemoveFunc removes the first sibling matching fn. See Remove.
func RemoveFunc[T any, P Sequenced[T]](items []T, fn func(T) bool) (out []T, removed T, ok bool) {
	sorted := Sorted[T, P](items)
	for i := range sorted {
		if fn(sorted[i]) {
			return Remove[T, P](sorted, i)
		}
	}
	return sorted, removed, false
}

// Move relocates the sibling at from to position to in the order-sorted view.
// Both indexes are clamped to [0, N-1].
func Move[T any, P Sequenced[T]](items []T, from, to int) []T {
	sorted := Sorted[T, P](items)
	if len(sorted) < 2 {
		renumber[T, P](sorted)
		return sorted
	}
	from = clamp(from, len(sorted)-1)
	to = clamp(to, len(sorted)-1)

	x := sorted[from]
	rest := append(sorted[:from:from], sorted[from+1:]...)
	out := make([]T, 0, len(sorted))
	out = append(out, rest[:to]...)
	out = append(out, x)
	out = append(out, rest[to:]...)
	renumber[T, P](out)
	return out
}

// Insert places x at index (clamped to [0, N]) and renumbers.
func Insert[T any, P Sequenced[T]](items []T, index int, x T) []T {
	sorted := Sorted[T, P](items)
	if index < 0 {
		index = 0
	}
	if index > len(sorted) {
		index = len(sorted)
	}
	out := make([]T, 0, len(sorted)+1)
	out = append(out, sorted[:index]...)
	out = append(out, x)
	out = append(out, sorted[index:]...)
	renumber[T, P](out)
	return out
}

// Compact returns a copy sorted by current order with order reassigned to the
// index. Ties keep their relative input position.
func Compact[T any, P Sequenced[T]](items []T) []T {
	out := Sorted[T, P](items)
	renumber[T, P](out)
	return out
}

// Sorted returns a copy stably sorted by order without renumbering.
func Sorted[T any, P Sequenced[T]](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return P(&out[i]).Position() < P(&out[j]).Position()
	})
	return out
}

// IsDense reports whether the order values are exactly {0, ..., N-1}.
func IsDense[T any, P Sequenced[T]](items []T) bool {
	seen := make([]bool, len(items))
	for i := range items {
		o := P(&items[i]).Position()
		if o < 0 || o >= len(items) || seen[o] {
			return false
		}
		seen[o] = true
	}
	return true
}

// HasDuplicates reports whether two siblings share an order value.
func HasDuplicates[T any, P Sequenced[T]](items []T) bool {
	seen := make(map[int]struct{}, len(items))
	for i := range items {
		o := P(&items[i]).Position()
		if _, dup := seen[o]; dup {
			return true
		}
		seen[o] = struct{}{}
	}
	return false
}

func renumber[T any, P Sequenced[T]](items []T) {
	for i := range items {
		P(&items[i]).SetPosition(i)
	}
}

func clamp(i, hi int) int {
	if i < 0 {
		return 0
	}
	if i > hi {
		return hi
	}
	return i
}
