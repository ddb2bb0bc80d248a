package traceability

import (
	"github.com/Alijeyrad/labtrace_backend/internal/service/resolve"
)

// ErrJobNotFound is returned when an id resolves neither as a native id
// nor as a human job_id.
var ErrJobNotFound = resolve.ErrJobNotFound
