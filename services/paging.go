package services

// MaxOffset bounds (page-1)*limit so the offset handed to the store never
// wraps around
const MaxOffset = 1 << 30

// PageOffset returns the number of rows to skip for a 1-based page.
// limit must be positive.
func PageOffset(page, limit int) (int, error) {
	if page < 1 {
		page = 1
	}
	if page-1 > MaxOffset/limit {
		return 0, ErrPageOutOfRange
	}
	return (page - 1) * limit, nil
}
