package trade

import (
	"container/heap"
	"math"
	"sort"

	"nebula4x.dev/internal/sim/model"
)

type edge struct {
	to int
	w  float64
}

type pqItem struct {
	d float64
	v int
}

type pq []pqItem

func (q pq) Len() int { return len(q) }
func (q pq) Less(i, j int) bool {
	if q[i].d != q[j].d {
		return q[i].d < q[j].d
	}
	return q[i].v < q[j].v
}
func (q pq) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *pq) Push(x any)   { *q = append(*q, x.(pqItem)) }
func (q *pq) Pop() any {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

// jumpDistances returns all-pairs shortest distances over the jump graph,
// each hop weighted by galaxy-map distance. Unreachable pairs are +Inf.
func jumpDistances(st *model.GameState, ids []model.ID) [][]float64 {
	n := len(ids)
	index := make(map[model.ID]int, n)
	for i, id := range ids {
		index[id] = i
	}
	adj := make([][]edge, n)
	for i, id := range ids {
		sys := st.Systems[id]
		for _, jid := range sys.JumpPoints {
			jp := st.JumpPoints[jid]
			if jp == nil {
				continue
			}
			other := st.JumpPoints[jp.LinkedJumpID]
			if other == nil {
				continue
			}
			j, ok := index[other.SystemID]
			if !ok || j == i {
				continue
			}
			w := sys.GalaxyPos.DistTo(st.Systems[other.SystemID].GalaxyPos)
			adj[i] = append(adj[i], edge{to: j, w: math.Max(0, w)})
		}
		sort.Slice(adj[i], func(a, b int) bool {
			if adj[i][a].to != adj[i][b].to {
				return adj[i][a].to < adj[i][b].to
			}
			return adj[i][a].w < adj[i][b].w
		})
	}

	out := make([][]float64, n)
	for src := range ids {
		dist := make([]float64, n)
		for i := range dist {
			dist[i] = math.Inf(1)
		}
		dist[src] = 0
		q := &pq{{d: 0, v: src}}
		for q.Len() > 0 {
			cur := heap.Pop(q).(pqItem)
			if cur.d > dist[cur.v]+1e-12 {
				continue
			}
			for _, e := range adj[cur.v] {
				if nd := cur.d + e.w; nd+1e-12 < dist[e.to] {
					dist[e.to] = nd
					heap.Push(q, pqItem{d: nd, v: e.to})
				}
			}
		}
		out[src] = dist
	}
	return out
}
