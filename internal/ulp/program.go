package ulp

// Step runs one iteration of the counting program with the sampled input
// level. The coprocessor runner calls it once per wake period.
//
// next_edge holds the level the input moves to on the next edge. While the
// input differs from it the debounce counter is reloaded; while it matches,
// the counter runs down, and once it reaches zero one more matching sample
// confirms the edge. An edge therefore needs debounce_max_count+1 samples.
func Step(r *Registers, level bool) {
	r.incr(wordRunCount)

	var in uint32
	if level {
		in = 1
	}
	next := r.NextEdge()

	if in != next {
		r.store(wordDebounceCounter, r.DebounceMaxCount())
		return
	}

	if c := r.DebounceCounter(); c > 0 {
		r.store(wordDebounceCounter, c-1)
		return
	}

	r.store(wordDebounceCounter, r.DebounceMaxCount())
	r.store(wordNextEdge, next^1)

	rising, falling := r.CountModes()
	mode := falling
	if next == 1 {
		mode = rising
	}
	// Decrement is counted by magnitude like increment; only the aggregate is tracked.
	if mode != CountDisable {
		r.incr(wordEdgeCount)
	}
}
