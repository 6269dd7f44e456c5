package model

import (
	"cmp"
	"slices"
)

// ID identifies every entity in a GameState. Zero is never allocated.
type ID uint64

const InvalidID ID = 0

// AllocateID returns the next free id and advances the counter.
func AllocateID(s *GameState) ID {
	if s.NextID == InvalidID {
		s.NextID = 1
	}
	id := s.NextID
	s.NextID++
	return id
}

// SortedKeys returns the keys of m in ascending order. Any loop whose
// result reaches state or a digest must iterate through it.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// SortUnique sorts ids in place and drops duplicates.
func SortUnique[T cmp.Ordered](v []T) []T {
	slices.Sort(v)
	return slices.Compact(v)
}

func SortUniqueIDs(ids []ID) []ID {
	return SortUnique(ids)
}

func ContainsID(ids []ID, id ID) bool {
	return slices.Contains(ids, id)
}

// RemoveID deletes every occurrence of id, keeping the order of the rest.
func RemoveID(ids []ID, id ID) []ID {
	return slices.DeleteFunc(ids, func(v ID) bool { return v == id })
}

// AddUniqueID appends id when it is not already present.
func AddUniqueID(ids []ID, id ID) []ID {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}
