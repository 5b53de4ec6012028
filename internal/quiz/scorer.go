package quiz

// SubmitAnswer returns a new tally with the option's points added.
// The input tally is passed by value and never modified.
func SubmitAnswer(tally Tally, chosen Option) Tally {
	for c, pts := range chosen.Points {
		tally[c] += pts
	}
	return tally
}

// Resolve returns the category with the strictly greatest score.
// Ties go to the category that comes first in canonical order.
func Resolve(tally Tally) Category {
	best := Economico
	for c := 1; c < NumCategories; c++ {
		if tally[c] > tally[best] {
			best = Category(c)
		}
	}
	return best
}

// Score replays a full sequence of chosen options from a zero tally.
func Score(chosen []Option) Category {
	var tally Tally
	for _, opt := range chosen {
		tally = SubmitAnswer(tally, opt)
	}
	return Resolve(tally)
}
