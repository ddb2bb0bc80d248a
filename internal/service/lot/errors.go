package lot

import "errors"

var (
	ErrJobRequired     = errors.New("job_id is required")
	ErrDuplicateItemNo = errors.New("item_no already exists")
	// ErrAllocationRace means every allocation attempt collided with a
	// concurrent create. The caller may retry.
	ErrAllocationRace = errors.New("item_no allocation conflicted with a concurrent create")
)
