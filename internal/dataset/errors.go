package dataset

import "fmt"

// MissingDemographicsError reports a data-integrity mismatch: a sampled point
// resolved to a region that has no demographics entry. This must surface
// rather than silently zero-fill the output row.
type MissingDemographicsError struct {
	Region string
}

func (e *MissingDemographicsError) Error() string {
	return fmt.Sprintf("dataset: region %q has no demographics entry", e.Region)
}
