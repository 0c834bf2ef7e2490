// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citation

import "github.com/itisaevalex/citation-verifier-sub001/pkg/types"

// GroupByReference aggregates citation contexts per cited reference. The
// result has one usage per reference with at least one context, in
// bibliography order; contexts within a usage keep document order. A
// context naming several references appears under each of them. Pure and
// total: empty input yields empty output.
func GroupByReference(refs []types.Reference, contexts []types.CitationContext) []types.ReferenceUsage {
	byID := make(map[string][]types.CitationContext)
	for _, ctx := range contexts {
		for _, id := range ctx.ReferenceIDs {
			byID[id] = append(byID[id], ctx)
		}
	}

	var usages []types.ReferenceUsage
	for _, ref := range refs {
		ctxs, ok := byID[ref.ID]
		if !ok {
			continue
		}
		usages = append(usages, types.ReferenceUsage{
			Reference:     ref,
			UsageContexts: ctxs,
		})
	}
	return usages
}
