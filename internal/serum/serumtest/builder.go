// Package serumtest builds Serum account buffers and provides an in-memory
// AccountFetcher for tests.
package serumtest

import (
	"bytes"
	"encoding/binary"

	"mango_go/internal/domain"
	"mango_go/internal/serum"

	"github.com/gagliardetto/solana-go"
)

const (
	slabHeaderLen = 32
	slabNodeLen   = 72
	queueHeader   = 24
	eventLen      = 88
)

func envelope(flags serum.AccountFlags, body []byte) []byte {
	buf := make([]byte, 0, 5+8+len(body)+7)
	buf = append(buf, "serum"...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(flags))
	buf = append(buf, body...)
	return append(buf, "padding"...)
}

// MarketAccount encodes a market state as a 388 byte account.
func MarketAccount(state serum.MarketState) []byte {
	var w bytes.Buffer
	w.WriteString("serum")
	if err := binary.Write(&w, binary.LittleEndian, state); err != nil {
		panic(err)
	}
	w.WriteString("padding")
	return w.Bytes()
}

// MarketState returns an initialized market state with the given queues and lot sizes.
func MarketState(baseMint, quoteMint, bids, asks, eventQueue solana.PublicKey, baseLot, quoteLot uint64) serum.MarketState {
	return serum.MarketState{
		AccountFlags: serum.FlagInitialized | serum.FlagMarket,
		BaseMint:     baseMint,
		QuoteMint:    quoteMint,
		Bids:         bids,
		Asks:         asks,
		EventQueue:   eventQueue,
		BaseLotSize:  baseLot,
		QuoteLotSize: quoteLot,
	}
}

// MintAccount encodes an initialized SPL mint with the given decimals.
func MintAccount(decimals uint8) []byte {
	buf := make([]byte, serum.MintSize)
	binary.LittleEndian.PutUint64(buf[36:44], 1_000_000)
	buf[44] = decimals
	buf[45] = 1
	return buf
}

// Leaf is a resting order stored in a slab node.
type Leaf struct {
	Key       domain.OrderID
	Owner     solana.PublicKey
	OwnerSlot uint8
	FeeTier   uint8
	Quantity  uint64
	ClientID  uint64
}

// Slab builds an order book side account node by node.
type Slab struct {
	flags     serum.AccountFlags
	nodes     [][]byte
	bumpIndex *uint64
	leafCount *uint64
	root      uint32
}

// NewSlab creates an empty book side with room for capacity nodes.
func NewSlab(side domain.Side, capacity int) *Slab {
	flags := serum.FlagInitialized | serum.FlagBids
	if side == domain.SideSell {
		flags = serum.FlagInitialized | serum.FlagAsks
	}
	nodes := make([][]byte, capacity)
	for i := range nodes {
		nodes[i] = make([]byte, slabNodeLen)
	}
	return &Slab{flags: flags, nodes: nodes}
}

// SetFlags overrides the account flags.
func (s *Slab) SetFlags(flags serum.AccountFlags) *Slab {
	s.flags = flags
	return s
}

// SetLeaf writes a leaf node at index i.
func (s *Slab) SetLeaf(i int, leaf Leaf) *Slab {
	n := s.nodes[i]
	binary.LittleEndian.PutUint32(n[0:4], uint32(serum.NodeLeaf))
	n[4] = leaf.OwnerSlot
	n[5] = leaf.FeeTier
	binary.LittleEndian.PutUint64(n[8:16], leaf.Key.Lo)
	binary.LittleEndian.PutUint64(n[16:24], leaf.Key.Hi)
	copy(n[24:56], leaf.Owner[:])
	binary.LittleEndian.PutUint64(n[56:64], leaf.Quantity)
	binary.LittleEndian.PutUint64(n[64:72], leaf.ClientID)
	return s
}

// SetInner writes an inner node at index i.
func (s *Slab) SetInner(i int, prefixLen uint32, key domain.OrderID, left, right uint32) *Slab {
	n := s.nodes[i]
	binary.LittleEndian.PutUint32(n[0:4], uint32(serum.NodeInner))
	binary.LittleEndian.PutUint32(n[4:8], prefixLen)
	binary.LittleEndian.PutUint64(n[8:16], key.Lo)
	binary.LittleEndian.PutUint64(n[16:24], key.Hi)
	binary.LittleEndian.PutUint32(n[24:28], left)
	binary.LittleEndian.PutUint32(n[28:32], right)
	return s
}

// SetFree marks index i as a free-list node. Leaf bytes already written
// there are kept, so the slot looks like a stale order.
func (s *Slab) SetFree(i int, next uint32, last bool) *Slab {
	n := s.nodes[i]
	tag := serum.NodeFree
	if last {
		tag = serum.NodeLastFree
	}
	binary.LittleEndian.PutUint32(n[0:4], uint32(tag))
	binary.LittleEndian.PutUint32(n[4:8], next)
	return s
}

// SetRoot sets the root node index.
func (s *Slab) SetRoot(root uint32) *Slab {
	s.root = root
	return s
}

// SetBumpIndex overrides the computed bump index.
func (s *Slab) SetBumpIndex(v uint64) *Slab {
	s.bumpIndex = &v
	return s
}

// SetLeafCount overrides the computed leaf count.
func (s *Slab) SetLeafCount(v uint64) *Slab {
	s.leafCount = &v
	return s
}

// Bytes encodes the account. Unless overridden, the bump index is one past
// the last non-empty node and the leaf count is the number of leaf nodes.
func (s *Slab) Bytes() []byte {
	var bump, leaves uint64
	for i, n := range s.nodes {
		tag := serum.NodeTag(binary.LittleEndian.Uint32(n[0:4]))
		if tag != serum.NodeUninitialized {
			bump = uint64(i + 1)
		}
		if tag == serum.NodeLeaf {
			leaves++
		}
	}
	if s.bumpIndex != nil {
		bump = *s.bumpIndex
	}
	if s.leafCount != nil {
		leaves = *s.leafCount
	}

	body := make([]byte, slabHeaderLen, slabHeaderLen+len(s.nodes)*slabNodeLen)
	binary.LittleEndian.PutUint64(body[0:8], bump)
	binary.LittleEndian.PutUint32(body[20:24], s.root)
	binary.LittleEndian.PutUint64(body[24:32], leaves)
	for _, n := range s.nodes {
		body = append(body, n...)
	}
	return envelope(s.flags, body)
}

// EventQueue builds an event queue account slot by slot.
type EventQueue struct {
	flags  serum.AccountFlags
	head   uint64
	count  uint64
	seqNum uint64
	slots  [][]byte
}

// NewEventQueue creates an empty queue with room for capacity events.
func NewEventQueue(capacity int) *EventQueue {
	slots := make([][]byte, capacity)
	for i := range slots {
		slots[i] = make([]byte, eventLen)
	}
	return &EventQueue{flags: serum.FlagInitialized | serum.FlagEventQueue, slots: slots}
}

// SetFlags overrides the account flags.
func (q *EventQueue) SetFlags(flags serum.AccountFlags) *EventQueue {
	q.flags = flags
	return q
}

// SetHeader sets the raw head index, live count and next sequence number.
func (q *EventQueue) SetHeader(head, count, seqNum uint64) *EventQueue {
	q.head, q.count, q.seqNum = head, count, seqNum
	return q
}

// SetSlot encodes ev into slot i. The sequence number is not stored on chain.
func (q *EventQueue) SetSlot(i int, ev domain.Event) *EventQueue {
	s := q.slots[i]
	s[0] = byte(ev.Flags)
	s[1] = ev.OwnerSlot
	s[2] = ev.FeeTier
	binary.LittleEndian.PutUint64(s[8:16], ev.NativeQuantityReleased)
	binary.LittleEndian.PutUint64(s[16:24], ev.NativeQuantityPaid)
	binary.LittleEndian.PutUint64(s[24:32], ev.NativeFeeOrRebate)
	binary.LittleEndian.PutUint64(s[32:40], ev.OrderID.Lo)
	binary.LittleEndian.PutUint64(s[40:48], ev.OrderID.Hi)
	copy(s[48:80], ev.Owner[:])
	binary.LittleEndian.PutUint64(s[80:88], ev.ClientOrderID)
	return q
}

// Push places events in consecutive slots starting at head, wrapping, and
// sets the header so they form the live range ending at seqNum.
func (q *EventQueue) Push(head, seqNum uint64, events ...domain.Event) *EventQueue {
	for i, ev := range events {
		q.SetSlot(int((head+uint64(i))%uint64(len(q.slots))), ev)
	}
	return q.SetHeader(head, uint64(len(events)), seqNum)
}

// Bytes encodes the account.
func (q *EventQueue) Bytes() []byte {
	body := make([]byte, queueHeader, queueHeader+len(q.slots)*eventLen)
	binary.LittleEndian.PutUint64(body[0:8], q.head)
	binary.LittleEndian.PutUint64(body[8:16], q.count)
	binary.LittleEndian.PutUint64(body[16:24], q.seqNum)
	for _, s := range q.slots {
		body = append(body, s...)
	}
	return envelope(q.flags, body)
}
