package search

import (
	"context"
	"testing"
)

func BenchmarkHydrate(b *testing.B) {
	reg := thingRegistry(b, []string{"A", "B", "C"}, "")
	refs := make([]interface{}, 0, 600)
	for i := 0; i < 300; i++ {
		refs = append(refs, []string{"A", "B", "C"}[i%3], i)
	}
	rows := rankedRows(refs...)
	r := NewReassembler(reg, false, 3, nil)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := r.Hydrate(ctx, rows); err != nil {
			b.Fatal(err)
		}
	}
}
