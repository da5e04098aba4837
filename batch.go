package main

// partitionReviews splits reviews into order-preserving chunks of at most
// batchSize, the last chunk possibly shorter. batchSize must be >= 1
// (enforced at config load).
func partitionReviews(reviews []ReviewRow, batchSize int) [][]ReviewRow {
	var batches [][]ReviewRow
	for start := 0; start < len(reviews); start += batchSize {
		end := start + batchSize
		if end > len(reviews) {
			end = len(reviews)
		}
		batches = append(batches, reviews[start:end])
	}
	return batches
}

// filterUnprocessed drops reviews that already have a complaint persisted
// for the current run, making re-runs pay only for the remainder.
func filterUnprocessed(reviews []ReviewRow, processed map[int64]bool) []ReviewRow {
	if len(processed) == 0 {
		return reviews
	}
	out := make([]ReviewRow, 0, len(reviews))
	for _, r := range reviews {
		if processed[r.ID] {
			continue
		}
		out = append(out, r)
	}
	return out
}
