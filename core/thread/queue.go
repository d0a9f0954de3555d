package thread

// Queue is a FIFO of threads linked through Thread.Next.
// The zero value is an empty queue. Queues are not safe for concurrent use;
// the scheduler guards them with its own lock.
type Queue struct {
	head, tail *Thread
}

// Push a thread onto the end of the queue.
func (q *Queue) Push(t *Thread) {
	if q.tail != nil {
		q.tail.Next = t
	}
	q.tail = t
	t.Next = nil
	if q.head == nil {
		q.head = t
	}
}

// Pop the thread at the head of the queue, or nil if it is empty.
func (q *Queue) Pop() *Thread {
	t := q.head
	if t == nil {
		return nil
	}
	q.head = t.Next
	if q.tail == t {
		q.tail = nil
	}
	t.Next = nil
	return t
}

// Peek returns the head of the queue without removing it.
func (q *Queue) Peek() *Thread {
	return q.head
}

// Remove unlinks t from the queue. It reports whether t was queued.
func (q *Queue) Remove(t *Thread) bool {
	var prev *Thread
	for cur := q.head; cur != nil; prev, cur = cur, cur.Next {
		if cur != t {
			continue
		}
		if prev == nil {
			q.head = cur.Next
		} else {
			prev.Next = cur.Next
		}
		if q.tail == cur {
			q.tail = prev
		}
		cur.Next = nil
		return true
	}
	return false
}

// Rotate moves the head of the queue to its tail.
func (q *Queue) Rotate() {
	if q.head == nil || q.head == q.tail {
		return
	}
	q.Push(q.Pop())
}

// Empty checks if the queue is empty.
func (q *Queue) Empty() bool {
	return q.head == nil
}

// Len counts the queued threads.
func (q *Queue) Len() int {
	n := 0
	for t := q.head; t != nil; t = t.Next {
		n++
	}
	return n
}
