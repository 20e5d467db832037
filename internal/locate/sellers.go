package locate

// scan runs the Sellers edit-distance recurrence of pattern against text,
// one text column at a time. For every text position end (exclusive) whose
// best alignment costs at most k, visit receives the rune offset where that
// alignment starts and its distance. Returning false from visit stops the scan.
//
// When anchored is false an alignment may start anywhere in text; when it is
// true every alignment starts at offset 0.
func scan(text, pattern []rune, k int, anchored bool, visit func(end, start, dist int) bool) {
	m := len(pattern)
	cost := make([]int, m+1)
	from := make([]int, m+1)
	next := make([]int, m+1)
	nextFrom := make([]int, m+1)

	for i := range cost {
		cost[i] = i
	}
	if cost[m] <= k && !visit(0, 0, cost[m]) {
		return
	}

	for j := 1; j <= len(text); j++ {
		c := text[j-1]
		if anchored {
			next[0], nextFrom[0] = j, 0
		} else {
			next[0], nextFrom[0] = 0, j
		}

		for i := 1; i <= m; i++ {
			best, bestFrom := cost[i-1], from[i-1]
			if pattern[i-1] != c {
				best++
			}
			if d := cost[i] + 1; d < best {
				best, bestFrom = d, from[i]
			}
			if d := next[i-1] + 1; d < best {
				best, bestFrom = d, nextFrom[i-1]
			}
			next[i], nextFrom[i] = best, bestFrom
		}

		cost, next = next, cost
		from, nextFrom = nextFrom, from

		if cost[m] <= k && !visit(j, from[m], cost[m]) {
			return
		}
	}
}
