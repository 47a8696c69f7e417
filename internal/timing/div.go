package timing

// ceilDiv returns ceil(a/b) for positive integers, without overflow for
// any a.
func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}

// roundDiv returns floor((a + b/2)/b), classic rounding for positives,
// without overflow for any a.
func roundDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	q := a / b
	if a%b >= b-b/2 {
		q++
	}
	return q
}
