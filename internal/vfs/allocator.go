package vfs

// allocator is a linear-scan free-block finder over a shared free_list
// (§4.3). It holds no state of its own — the free list lives on
// [fsState] — so it is simply the function below, kept in its own file as
// the component boundary the spec draws.

// findFree returns the first n indices in freeList that are true, in
// ascending order. It returns ok == false if fewer than n blocks are free;
// freeList is never mutated. Deterministic: the same free list always
// yields the same result (§4.3).
func findFree(freeList [MaxBlocks]bool, n int) (blocks []int, ok bool) {
	if n == 0 {
		return nil, true
	}

	found := make([]int, 0, n)

	for k := 0; k < MaxBlocks; k++ {
		if freeList[k] {
			found = append(found, k)
			if len(found) == n {
				return found, true
			}
		}
	}

	return nil, false
}
