package models

// BranchProgress returns the fraction of done tasks among the given tasks,
// typically the direct children of a branch. Empty input yields 0.
func BranchProgress(tasks []Task) float64 {
	if len(tasks) == 0 {
		return 0
	}
	done := 0
	for i := range tasks {
		if tasks[i].Status == StatusDone {
			done++
		}
	}
	return float64(done) / float64(len(tasks))
}
