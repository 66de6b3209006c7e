package ingest

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/stephenschott/affluence-cli/internal/model"
)

// parseTier reads a price tier cell. Yelp exports carry the tier either as an
// integer ("2") or as a run of dollar signs ("$$"); both forms are accepted.
func parseTier(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, eris.Wrap(model.ErrInvalidArgument, "ingest: empty price tier")
	}
	if strings.Count(s, "$") == len(s) {
		return len(s), nil
	}
	tier, err := strconv.Atoi(s)
	if err != nil {
		return 0, eris.Wrapf(model.ErrInvalidArgument, "ingest: price tier %q is not numeric", s)
	}
	return tier, nil
}
