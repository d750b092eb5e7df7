package temporal

// expiryQueue is a min-heap on (ExpireTick, Handle).
type expiryQueue []*Mutation

func (q expiryQueue) Len() int { return len(q) }

func (q expiryQueue) Less(i, j int) bool {
	if q[i].ExpireTick != q[j].ExpireTick {
		return q[i].ExpireTick < q[j].ExpireTick
	}
	return q[i].Handle < q[j].Handle
}

func (q expiryQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *expiryQueue) Push(x any) {
	mu := x.(*Mutation)
	mu.index = len(*q)
	*q = append(*q, mu)
}

func (q *expiryQueue) Pop() any {
	old := *q
	n := len(old)
	mu := old[n-1]
	old[n-1] = nil
	mu.index = -1
	*q = old[:n-1]
	return mu
}
