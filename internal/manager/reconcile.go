package manager

import "slices"

// Reconcile compares the ids with running sessions against the desired
// ids. Both results are sorted.
func Reconcile(current, desired []string) (toStart, toStop []string) {
	have := make(map[string]bool, len(current))
	for _, id := range current {
		have[id] = true
	}
	want := make(map[string]bool, len(desired))
	for _, id := range desired {
		want[id] = true
	}

	for id := range want {
		if !have[id] {
			toStart = append(toStart, id)
		}
	}
	for id := range have {
		if !want[id] {
			toStop = append(toStop, id)
		}
	}
	slices.Sort(toStart)
	slices.Sort(toStop)
	return toStart, toStop
}
