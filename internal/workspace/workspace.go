// Package workspace drives concurrent processing of independent
// ir.Modules. Per §5, two Modules may be processed on separate
// goroutines as long as they share no Context; this package is the one
// place that invariant is enforced and exploited, fanning a batch of
// per-Module pipelines out over golang.org/x/sync/errgroup the way the
// teacher's internal/concurrency package fans work out over worker
// pools, but using errgroup's first-error cancellation instead of a
// hand-rolled WaitGroup/error-channel pair.
package workspace

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"lhd/internal/ir"
)

// Error is the workspace package's slice of the §7 error taxonomy.
type Error string

func (e Error) Error() string { return string(e) }

// ErrorSharedContext is returned by Run when two Units in the batch
// belong to Modules backed by the same *ir.Context; processing them
// concurrently would race on that Context's type/constant uniquing
// tables.
const ErrorSharedContext Error = "workspace: two modules in the same batch share a context"

// Pipeline is one unit of independent work: process runs against module,
// which must belong to no other Pipeline's module in the same Run call.
type Pipeline struct {
	Name    string
	Module  *ir.Module
	Process func(*ir.Module) error
}

// Run executes every Pipeline's Process concurrently, one goroutine per
// Pipeline, stopping at the first error and cancelling ctx for the rest
// (errgroup.WithContext's standard behavior). Run itself checks the
// no-shared-Context precondition before launching anything, since a
// violation there is a programmer error in how the batch was assembled,
// not a per-pipeline failure.
func Run(ctx context.Context, pipelines []Pipeline) error {
	seen := make(map[*ir.Context]string, len(pipelines))
	for _, p := range pipelines {
		if p.Module == nil {
			continue
		}
		if owner, ok := seen[p.Module.Ctx]; ok {
			return fmt.Errorf("%w: %q and %q", ErrorSharedContext, owner, p.Name)
		}
		seen[p.Module.Ctx] = p.Name
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range pipelines {
		p := p
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			if err := p.Process(p.Module); err != nil {
				return fmt.Errorf("workspace: pipeline %q: %w", p.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
