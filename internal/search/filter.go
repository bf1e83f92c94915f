package search

// FilterExcluded drops fused candidates whose chapter number is in the
// exclusion set. Surviving candidates keep their relative order.
// Candidates without a known chapter are kept.
func FilterExcluded(pool []FusedResult, chapterOf map[string]int, exclude []int) []FusedResult {
	if len(exclude) == 0 {
		return pool
	}

	excluded := make(map[int]struct{}, len(exclude))
	for _, ch := range exclude {
		excluded[ch] = struct{}{}
	}

	kept := make([]FusedResult, 0, len(pool))
	for _, r := range pool {
		ch, known := chapterOf[r.ChunkID]
		if known {
			if _, drop := excluded[ch]; drop {
				continue
			}
		}
		kept = append(kept, r)
	}
	return kept
}

// CapPerChapter walks the fused ranking in order, keeping at most
// maxPerChapter candidates per chapter. A candidate over the cap is
// removed from the pool, not scored down. maxPerChapter <= 0 means
// unlimited.
func CapPerChapter(pool []FusedResult, chapterOf map[string]int, maxPerChapter int) []FusedResult {
	if maxPerChapter <= 0 {
		return pool
	}

	counts := make(map[int]int)
	kept := make([]FusedResult, 0, len(pool))
	for _, r := range pool {
		ch, known := chapterOf[r.ChunkID]
		if !known {
			kept = append(kept, r)
			continue
		}
		if counts[ch] >= maxPerChapter {
			continue
		}
		counts[ch]++
		kept = append(kept, r)
	}
	return kept
}
