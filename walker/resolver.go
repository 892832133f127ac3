package walker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofhir/gen3dict/service"
)

// dereference resolves a content reference ("#Questionnaire.item" or
// "http://...#Questionnaire.item") seen inside level sc. It returns the
// target id and the target's elements from the root profile. A target
// contained in the current level's root name refers back to an enclosing
// level; that yields nil elements.
func (w *Walker) dereference(ctx context.Context, sc *scope, ref string) (string, []service.ElementDefinition, error) {
	target := ref[strings.IndexByte(ref, '#')+1:]
	root := sc.root()
	if strings.Contains(root, target) {
		w.log.Warn("recursion detected: %s references %s", root, target)
		return target, nil, nil
	}

	profile := FirstSegment(root)
	sd, err := w.profiles.ResolveProfile(ctx, profile, "")
	if errors.Is(err, service.ErrNotFound) {
		w.log.Warn("cannot resolve content reference %s: no profile for %s", ref, profile)
		return target, nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	elements := SliceElements(sd.Snapshot, target)
	if len(elements) == 0 {
		return "", nil, fmt.Errorf("%w: content reference %s not found in %s", ErrStructural, ref, profile)
	}
	w.log.Debug("%s content reference %s de-referenced, fetched %d children", root, target, len(elements))
	return target, elements, nil
}
