package domain

// DedupKey identifies an exercise for uniqueness purposes. The store holds
// at most one exercise per key, enforced by a unique index.
type DedupKey struct {
	Sentence string
	Topic    string
	Level    Level
}

// DedupKeyFor derives the key of an exercise.
func DedupKeyFor(e *Exercise) DedupKey {
	return DedupKey{
		Sentence: NormalizeSentence(e.SentenceTemplate),
		Topic:    e.Topic,
		Level:    e.Level,
	}
}

// ShouldInsert decides insert-or-skip for a candidate against the keys
// already known to the caller. Concurrent writers still rely on the
// storage constraint; this only prunes work that is certain to be skipped.
func ShouldInsert(e *Exercise, existing map[DedupKey]struct{}) bool {
	_, found := existing[DedupKeyFor(e)]
	return !found
}

// FilterDuplicates keeps the first exercise for each dedup key and returns
// how many later ones were dropped.
func FilterDuplicates(batch []*Exercise) ([]*Exercise, int) {
	seen := make(map[DedupKey]struct{}, len(batch))
	unique := make([]*Exercise, 0, len(batch))
	for _, e := range batch {
		if e == nil {
			continue
		}
		if !ShouldInsert(e, seen) {
			continue
		}
		seen[DedupKeyFor(e)] = struct{}{}
		unique = append(unique, e)
	}
	return unique, len(batch) - len(unique)
}
