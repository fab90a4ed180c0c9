package h5pcontent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MaxDependencyDepth bounds dependency traversal so that cyclic or malformed
// edge data always terminates.
const MaxDependencyDepth = 20

// Resolver computes transitive library dependencies.
type Resolver struct {
	repository Repository
}

// NewResolver creates a resolver backed by the repository. When the
// repository implements DependencyTreeQuerier the closure is computed there.
func NewResolver(repository Repository) *Resolver {
	return &Resolver{repository: repository}
}

// FullDependencyTree returns every library reachable from libraryID over any
// dependency edge type, excluding libraryID itself. Each library appears once.
// A library without edges yields an empty slice.
func (r *Resolver) FullDependencyTree(ctx context.Context, libraryID uuid.UUID) ([]*Library, error) {
	if q, ok := r.repository.(DependencyTreeQuerier); ok {
		return q.FullDependencyTree(ctx, libraryID)
	}
	return r.walk(ctx, libraryID)
}

// walk is a breadth-first traversal with a visited set and a hard depth ceiling.
func (r *Resolver) walk(ctx context.Context, root uuid.UUID) ([]*Library, error) {
	result := []*Library{}
	visited := map[uuid.UUID]bool{root: true}
	frontier := []uuid.UUID{root}

	for depth := 1; depth <= MaxDependencyDepth && len(frontier) > 0; depth++ {
		var next []uuid.UUID
		for _, id := range frontier {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			deps, err := r.repository.ListDependencyLibraries(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("list dependencies of %s: %w", id, err)
			}
			for _, dep := range deps {
				if visited[dep.ID] {
					continue
				}
				visited[dep.ID] = true
				result = append(result, dep)
				next = append(next, dep.ID)
			}
		}
		frontier = next
	}

	return result, nil
}
