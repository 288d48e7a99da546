package nearest

import (
	"math"

	"github.com/wyfcoding/geonear/geo"
	"github.com/wyfcoding/geonear/xerrors"
)

// DefaultLeafSize 叶子节点最多容纳的点数。
const DefaultLeafSize = 8

// Option 索引构建选项。
type Option func(*buildOptions)

type buildOptions struct {
	leafSize int
}

// WithLeafSize 设置叶子节点容量。
func WithLeafSize(n int) Option {
	return func(o *buildOptions) {
		o.leafSize = n
	}
}

// kdNode 是 k-d 树节点，按下标存放在 Index.nodes 中。
// 节点覆盖 perm[start:end)；叶子节点 left == -1。
type kdNode struct {
	lo, hi      geo.Vec3
	start, end  int32
	left, right int32
}

// boxDistSq 返回查询点到节点包围盒的最小欧氏距离平方。
func (n *kdNode) boxDistSq(q geo.Vec3) float64 {
	var sum float64
	for axis := range 3 {
		var gap float64
		switch {
		case q[axis] < n.lo[axis]:
			gap = n.lo[axis] - q[axis]
		case q[axis] > n.hi[axis]:
			gap = q[axis] - n.hi[axis]
		}
		sum += gap * gap
	}
	return sum
}

// Index 是构建在坐标集单位球投影上的 k-d 树。
// 投影缓冲区与节点数组由索引独占；坐标集仅被引用，释放后查询返回 ErrStaleIndex。
// 构建完成后只读，可被多个 goroutine 并发查询。
type Index struct {
	set      *CoordinateSet
	xyz      []geo.Vec3 // 按原始下标存放的投影
	perm     []int32    // 点下标排列，叶子节点引用其中的连续区间
	nodes    []kdNode   // 节点数组，nodes[0] 为根
	leafSize int
	depth    int
}

// Build 在坐标集上构建空间索引，复杂度 O(N log N)。
func Build(set *CoordinateSet, opts ...Option) (*Index, error) {
	options := buildOptions{leafSize: DefaultLeafSize}
	for _, opt := range opts {
		opt(&options)
	}
	if options.leafSize < 1 {
		return nil, xerrors.InvalidInput("leaf size must be positive, got %d", options.leafSize)
	}

	c, err := set.load()
	if err != nil {
		return nil, err
	}
	if len(c.lats) > math.MaxInt32 {
		return nil, xerrors.InvalidInput("coordinate set of %d points exceeds index capacity", len(c.lats))
	}

	n := len(c.lats)
	idx := &Index{
		set:      set,
		xyz:      make([]geo.Vec3, n),
		perm:     make([]int32, n),
		nodes:    make([]kdNode, 0, 2*n/options.leafSize+1),
		leafSize: options.leafSize,
	}
	for i := range n {
		idx.xyz[i] = geo.ToUnitVector(c.lats[i], c.lons[i])
		idx.perm[i] = int32(i)
	}
	idx.build(0, int32(n), 1)

	return idx, nil
}

// build 递归划分 perm[start:end)，返回节点下标。
// 沿包围盒跨度最大的坐标轴在中位数处切分。
func (t *Index) build(start, end int32, depth int) int32 {
	if depth > t.depth {
		t.depth = depth
	}

	node := kdNode{start: start, end: end, left: -1, right: -1}
	node.lo, node.hi = t.bounds(start, end)
	self := int32(len(t.nodes))
	t.nodes = append(t.nodes, node)

	if int(end-start) <= t.leafSize {
		return self
	}

	axis, spread := widestAxis(node.lo, node.hi)
	if !(spread > 0) {
		// 全部重合（或全部为 NaN）的点无法再划分
		return self
	}

	mid := start + (end-start)/2
	t.quickSelect(start, end-1, mid, axis)

	left := t.build(start, mid, depth+1)
	right := t.build(mid, end, depth+1)
	t.nodes[self].left = left
	t.nodes[self].right = right

	return self
}

// bounds 计算区间内投影点的包围盒，NaN 坐标不参与。
func (t *Index) bounds(start, end int32) (lo, hi geo.Vec3) {
	inf := math.Inf(1)
	lo = geo.Vec3{inf, inf, inf}
	hi = geo.Vec3{-inf, -inf, -inf}
	for _, pi := range t.perm[start:end] {
		p := t.xyz[pi]
		for axis := range 3 {
			if p[axis] < lo[axis] {
				lo[axis] = p[axis]
			}
			if p[axis] > hi[axis] {
				hi[axis] = p[axis]
			}
		}
	}
	return lo, hi
}

func widestAxis(lo, hi geo.Vec3) (int, float64) {
	axis, spread := 0, hi[0]-lo[0]
	for a := 1; a < 3; a++ {
		if s := hi[a] - lo[a]; s > spread {
			axis, spread = a, s
		}
	}
	return axis, spread
}

// less 定义沿 axis 的严格全序：先比坐标（NaN 视为 +Inf），再比下标。
func (t *Index) less(a, b int32, axis int) bool {
	va, vb := t.xyz[a][axis], t.xyz[b][axis]
	if math.IsNaN(va) {
		va = math.Inf(1)
	}
	if math.IsNaN(vb) {
		vb = math.Inf(1)
	}
	if va != vb {
		return va < vb
	}
	return a < b
}

// quickSelect 重排 perm[left:right+1]，使 perm[k] 就位且左侧均小于它、右侧均大于它。
func (t *Index) quickSelect(left, right, k int32, axis int) {
	for left < right {
		pivotIdx := t.partition(left, right, axis)
		switch {
		case pivotIdx == k:
			return
		case pivotIdx < k:
			left = pivotIdx + 1
		default:
			right = pivotIdx - 1
		}
	}
}

func (t *Index) partition(left, right int32, axis int) int32 {
	// 三数取中，避免有序输入退化为 O(n²)
	mid := left + (right-left)/2
	p := t.perm
	if t.less(p[mid], p[left], axis) {
		p[mid], p[left] = p[left], p[mid]
	}
	if t.less(p[right], p[left], axis) {
		p[right], p[left] = p[left], p[right]
	}
	if t.less(p[mid], p[right], axis) {
		p[mid], p[right] = p[right], p[mid]
	}

	pivot := p[right]
	i := left
	for j := left; j < right; j++ {
		if t.less(p[j], pivot, axis) {
			p[i], p[j] = p[j], p[i]
			i++
		}
	}
	p[i], p[right] = p[right], p[i]

	return i
}

// Nearest 实现 Searcher。
// 欧氏投影距离只用于剪枝与收集候选；最终排序与返回的距离都由 Haversine 在原始经纬度上计算，
// 与 BruteForce 采用同一并列规则。
func (t *Index) Nearest(points []geo.Point) (Result, error) {
	if t == nil || len(t.nodes) == 0 {
		return Result{}, xerrors.StaleIndex("index was never built")
	}
	c, err := t.set.load()
	if err != nil {
		return Result{}, err
	}
	if err := validatePoints(points); err != nil {
		return Result{}, err
	}

	res := newResult(len(points))
	s := kdSearch{tree: t}
	for qi, p := range points {
		s.reset(geo.ToUnitVector(p.Lat, p.Lon))
		s.visit(0)
		res.Indices[qi], res.Distances[qi] = pickTied(p, c, s.cands, s.bestD)
	}
	return res, nil
}

// Len 返回索引覆盖的点数。
func (t *Index) Len() int { return len(t.perm) }

// Depth 返回树的最大深度（根为 1）。
func (t *Index) Depth() int { return t.depth }

// LeafSize 返回构建时使用的叶子容量。
func (t *Index) LeafSize() int { return t.leafSize }

// Nodes 返回节点数。
func (t *Index) Nodes() int { return len(t.nodes) }

type kdSearch struct {
	tree  *Index
	q     geo.Vec3
	bestD float64
	cands []candidate
}

func (s *kdSearch) reset(q geo.Vec3) {
	s.q = q
	s.bestD = math.Inf(1)
	s.cands = s.cands[:0]
}

// visit 分支限界搜索：先访问包围盒更近的子树；
// 子树最小距离超出当前最优的收集窗口时才剪枝，窗口内的点全部作为候选。
func (s *kdSearch) visit(ni int32) {
	n := &s.tree.nodes[ni]
	if n.left < 0 {
		for _, pi := range s.tree.perm[n.start:n.end] {
			d := s.q.DistSq(s.tree.xyz[pi])
			if !(d <= window(s.bestD)) {
				continue
			}
			s.cands = append(s.cands, candidate{idx: pi, dist: d})
			if d < s.bestD {
				s.bestD = d
			}
		}
		return
	}

	near, far := n.left, n.right
	dNear := s.tree.nodes[near].boxDistSq(s.q)
	dFar := s.tree.nodes[far].boxDistSq(s.q)
	if dFar < dNear {
		near, far = far, near
		dNear, dFar = dFar, dNear
	}

	if !(dNear > window(s.bestD)) {
		s.visit(near)
	}
	if !(dFar > window(s.bestD)) {
		s.visit(far)
	}
}
