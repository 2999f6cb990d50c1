// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package app

func scale(p *float64, k float64) {
	*p = *p * k
}

func swap64(p *int64, q *int64) {
	t := *p
	*p = *q
	*q = t
}

func pick(p *int32, a int64) int64 {
	r := a
	if *p != 0 {
		r = 0
	}
	return r
}

func sum(p *[4]float32) float32 {
	var total float32
	for i := 0; i < 4; i++ {
		total = total + p[i]
	}
	return total
}

func count(p *[8]uint32, limit float32) int {
	n := 0
	for i := 0; i < 8; i++ {
		if float32(p[i]) < limit {
			n = n + 1
		}
	}
	return n
}
