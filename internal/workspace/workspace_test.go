package workspace

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"lhd/internal/ir"
)

func TestRunProcessesIndependentModulesConcurrently(t *testing.T) {
	var processed int32
	pipelines := make([]Pipeline, 0, 4)
	for i := 0; i < 4; i++ {
		ctx := ir.NewContext()
		m := ir.NewModule(ctx)
		pipelines = append(pipelines, Pipeline{
			Name:   "mod",
			Module: m,
			Process: func(*ir.Module) error {
				atomic.AddInt32(&processed, 1)
				return nil
			},
		})
	}

	if err := Run(context.Background(), pipelines); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if processed != 4 {
		t.Fatalf("expected 4 pipelines processed, got %d", processed)
	}
}

func TestRunReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	ctx := ir.NewContext()
	m1 := ir.NewModule(ctx)
	m2 := ir.NewModule(ir.NewContext())

	pipelines := []Pipeline{
		{Name: "ok", Module: m1, Process: func(*ir.Module) error { return nil }},
		{Name: "bad", Module: m2, Process: func(*ir.Module) error { return boom }},
	}

	err := Run(context.Background(), pipelines)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestRunRejectsSharedContext(t *testing.T) {
	ctx := ir.NewContext()
	m1 := ir.NewModule(ctx)
	m2 := ir.NewModule(ctx)

	pipelines := []Pipeline{
		{Name: "a", Module: m1, Process: func(*ir.Module) error { return nil }},
		{Name: "b", Module: m2, Process: func(*ir.Module) error { return nil }},
	}

	err := Run(context.Background(), pipelines)
	if !errors.Is(err, ErrorSharedContext) {
		t.Fatalf("expected ErrorSharedContext, got %v", err)
	}
}
