package channel

// Cursor arithmetic for a ring of capacity c where one slot is always kept
// empty: w == r means empty, (w+1)%c == r means full.

func ringLen(c, w, r int) int {
	return (w - r + c) % c
}

func ringFree(c, w, r int) int {
	return c - 1 - ringLen(c, w, r)
}

func ringEmpty(w, r int) bool {
	return w == r
}

func ringFull(c, w, r int) bool {
	return (w+1)%c == r
}

// readableRun returns the number of occupied slots starting at r that can be
// copied without wrapping past the end of storage or reaching w.
func readableRun(c, w, r int) int {
	if w >= r {
		return w - r
	}

	return c - r
}

// writableRun returns the number of free slots starting at w that can be
// filled without wrapping past the end of storage or touching the sentinel
// slot just before r.
func writableRun(c, w, r int) int {
	if w < r {
		return r - w - 1
	}

	if r == 0 {
		return c - 1 - w
	}

	return c - w
}

func advance(c, cursor, n int) int {
	return (cursor + n) % c
}
