// Package id generates time-ordered 63-bit ids for stores that have no identity column.
package id

import (
	"errors"
	"sync"
	"time"
)

const (
	nodeBits  = 10
	stepBits  = 12
	nodeMax   = -1 ^ (-1 << nodeBits)
	stepMax   = -1 ^ (-1 << stepBits)
	timeShift = nodeBits + stepBits
	nodeShift = stepBits

	// 2025-01-01 00:00:00 UTC
	epoch int64 = 1735689600000
)

var ErrNodeRange = errors.New("node id out of range")

// Node hands out ids unique to one process; distinct processes need distinct node ids.
type Node struct {
	mu     sync.Mutex
	now    func() time.Time
	last   int64
	nodeID int64
	step   int64
}

func NewNode(nodeID int64) (*Node, error) {
	if nodeID < 0 || nodeID > nodeMax {
		return nil, ErrNodeRange
	}
	return &Node{nodeID: nodeID, now: time.Now}, nil
}

func (n *Node) millis() int64 {
	return n.now().UnixMilli()
}

// Next returns the next id. If the clock steps back, it keeps counting from the
// last seen millisecond rather than reuse a value.
func (n *Node) Next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	ms := n.millis()
	if ms < n.last {
		ms = n.last
	}
	if ms == n.last {
		n.step = (n.step + 1) & stepMax
		if n.step == 0 {
			for ms <= n.last {
				ms = n.millis()
			}
		}
	} else {
		n.step = 0
	}
	n.last = ms

	return ((ms - epoch) << timeShift) | (n.nodeID << nodeShift) | n.step
}
