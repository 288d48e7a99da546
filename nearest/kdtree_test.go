package nearest

import (
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/wyfcoding/geonear/geo"
	"github.com/wyfcoding/geonear/xerrors"
)

func TestBuild_PartitionsEveryPointOnce(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	for _, leaf := range []int{1, 3, 8, 64} {
		set := randomSet(t, rng, 1000)
		idx, err := Build(set, WithLeafSize(leaf))
		if err != nil {
			t.Fatal(err)
		}

		seen := make([]int, set.Len())
		for _, n := range idx.nodes {
			if n.left >= 0 {
				l, r := idx.nodes[n.left], idx.nodes[n.right]
				if l.start != n.start || l.end != r.start || r.end != n.end {
					t.Fatalf("children [%d,%d) [%d,%d) do not split parent [%d,%d)",
						l.start, l.end, r.start, r.end, n.start, n.end)
				}
				continue
			}
			if int(n.end-n.start) > leaf {
				t.Errorf("leaf holds %d points, limit %d", n.end-n.start, leaf)
			}
			for _, pi := range idx.perm[n.start:n.end] {
				seen[pi]++
			}
		}
		for i, c := range seen {
			if c != 1 {
				t.Fatalf("leaf=%d: point %d appears %d times", leaf, i, c)
			}
		}
		if idx.Len() != set.Len() {
			t.Errorf("Len() = %d, want %d", idx.Len(), set.Len())
		}
		if maxDepth := 2 + int(math.Ceil(math.Log2(float64(set.Len())))); idx.Depth() > maxDepth {
			t.Errorf("leaf=%d: depth %d exceeds balanced bound %d", leaf, idx.Depth(), maxDepth)
		}
	}
}

func TestBuild_BoundingBoxesContainPoints(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 2))
	idx, err := Build(randomSet(t, rng, 300), WithLeafSize(2))
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range idx.nodes {
		for _, pi := range idx.perm[n.start:n.end] {
			p := idx.xyz[pi]
			for axis := range 3 {
				if p[axis] < n.lo[axis] || p[axis] > n.hi[axis] {
					t.Fatalf("point %d outside node box on axis %d", pi, axis)
				}
			}
		}
	}
}

func TestBuild_IdenticalPoints(t *testing.T) {
	lats := make([]float64, 100)
	lons := make([]float64, 100)
	for i := range lats {
		lats[i], lons[i] = 12.5, -45
	}
	set, err := NewCoordinateSet(lats, lons)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := Build(set, WithLeafSize(2))
	if err != nil {
		t.Fatal(err)
	}
	if idx.Nodes() != 1 {
		t.Errorf("Nodes() = %d, want a single degenerate leaf", idx.Nodes())
	}
	m, err := NearestPoint(idx, geo.Point{Lat: 0, Lon: 0})
	if err != nil {
		t.Fatal(err)
	}
	if m.Index != 0 {
		t.Errorf("Index = %d, want 0", m.Index)
	}
}

func TestBuild_InvalidLeafSize(t *testing.T) {
	if _, err := Build(europe(t), WithLeafSize(0)); !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("Build(leaf=0) error = %v, want ErrInvalidInput", err)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	set := randomSet(t, rng, 2000)
	points := randomPoints(rng, 300)

	a, err := Build(set)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Build(set)
	if err != nil {
		t.Fatal(err)
	}
	ra, _ := a.Nearest(points)
	rb, _ := b.Nearest(points)
	for i := range points {
		if ra.At(i) != rb.At(i) {
			t.Fatalf("query %d: first build %v, second build %v", i, ra.At(i), rb.At(i))
		}
	}
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	lats := []float64{5, 4, 3, 2, 1, 0, -1, -2, -3, -4}
	lons := []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90}
	wantLats := append([]float64(nil), lats...)
	wantLons := append([]float64(nil), lons...)
	set, err := NewCoordinateSet(lats, lons)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Build(set, WithLeafSize(1)); err != nil {
		t.Fatal(err)
	}
	for i := range lats {
		if lats[i] != wantLats[i] || lons[i] != wantLons[i] {
			t.Fatalf("input mutated at %d", i)
		}
	}
}

func TestIndex_StaleAfterRelease(t *testing.T) {
	set := europe(t)
	idx, err := Build(set)
	if err != nil {
		t.Fatal(err)
	}
	brute := NewBruteForce(set)

	set.Release()
	if !set.Released() {
		t.Fatal("Released() = false after Release()")
	}
	if _, err := idx.Nearest([]geo.Point{{Lat: 51, Lon: 0}}); !errors.Is(err, xerrors.ErrStaleIndex) {
		t.Errorf("Index.Nearest() error = %v, want ErrStaleIndex", err)
	}
	if _, err := brute.Nearest([]geo.Point{{Lat: 51, Lon: 0}}); !errors.Is(err, xerrors.ErrStaleIndex) {
		t.Errorf("BruteForce.Nearest() error = %v, want ErrStaleIndex", err)
	}
	if _, err := Build(set); !errors.Is(err, xerrors.ErrStaleIndex) {
		t.Errorf("Build(released) error = %v, want ErrStaleIndex", err)
	}
	if set.Lats() != nil || set.Lons() != nil {
		t.Errorf("released set still exposes its arrays")
	}
}

func TestIndex_ZeroValueIsUnbuilt(t *testing.T) {
	var idx Index
	if _, err := idx.Nearest([]geo.Point{{Lat: 0, Lon: 0}}); !errors.Is(err, xerrors.ErrStaleIndex) {
		t.Errorf("zero Index Nearest() error = %v, want ErrStaleIndex", err)
	}
}

func TestIndex_ConcurrentQueries(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 4))
	set := randomSet(t, rng, 5000)
	idx, err := Build(set)
	if err != nil {
		t.Fatal(err)
	}
	points := randomPoints(rng, 200)
	want, err := NearestBrute(points, set)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := idx.Nearest(points)
			if err != nil {
				errs <- err
				return
			}
			for i := range points {
				if math.Abs(got.Distances[i]-want.Distances[i]) > 1e-6 {
					errs <- errors.New("concurrent query diverged from brute force")
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func BenchmarkIndexNearest(b *testing.B) {
	rng := rand.New(rand.NewPCG(8, 8))
	set := randomSet(b, rng, 1_000_000/8)
	idx, err := Build(set)
	if err != nil {
		b.Fatal(err)
	}
	points := randomPoints(rng, 1024)
	b.ResetTimer()
	for b.Loop() {
		if _, err := idx.Nearest(points); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBruteNearest(b *testing.B) {
	rng := rand.New(rand.NewPCG(8, 8))
	set := randomSet(b, rng, 1_000_000/8)
	points := randomPoints(rng, 8)
	b.ResetTimer()
	for b.Loop() {
		if _, err := NearestBrute(points, set); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBuild(b *testing.B) {
	rng := rand.New(rand.NewPCG(8, 8))
	set := randomSet(b, rng, 1_000_000/8)
	b.ResetTimer()
	for b.Loop() {
		if _, err := Build(set); err != nil {
			b.Fatal(err)
		}
	}
}
