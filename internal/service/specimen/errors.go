package specimen

import "errors"

var (
	ErrSpecimenIDRequired = errors.New("specimen_id is required")
	ErrSpecimenExists     = errors.New("specimen_id already exists")
)
