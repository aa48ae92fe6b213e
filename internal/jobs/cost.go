package jobs

// Cost computes the star price for a page count at ratePer50 stars per 50
// pages, rounding up. Monotonic non-decreasing in pages; any non-empty
// document costs at least one star.
func Cost(pages int, ratePer50 int64) int64 {
	if pages < 0 {
		pages = 0
	}
	cost := (int64(pages)*ratePer50 + 49) / 50
	if cost < 1 {
		cost = 1
	}
	return cost
}
