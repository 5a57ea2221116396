package kernel

// Select implements spec.md §4.1: scan the task table circularly starting
// just after startIndex, returning the index of the highest-importance
// (numerically lowest priority) task whose state is Healthy(Runnable), with
// ties broken by absolute table index (not scan order — the full circle is
// always walked, so the lowest-index tied candidate is found regardless of
// where the scan started).
func Select(tasks []*Task, startIndex int) int {
	n := len(tasks)
	best := -1
	bestPriority := ^uint32(0)

	for i := 1; i <= n; i++ {
		idx := (startIndex + i) % n
		t := tasks[idx]
		if !t.State.IsHealthy() || t.State.Sched.Kind != Runnable {
			continue
		}
		p := t.Descriptor.Priority
		if p < bestPriority || (p == bestPriority && idx < best) {
			bestPriority = p
			best = idx
		}
	}

	return best
}
