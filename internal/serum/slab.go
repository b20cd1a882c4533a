package serum

import (
	"encoding/binary"
	"fmt"

	"mango_go/internal/domain"
)

const (
	slabHeaderLen = 32
	slabNodeLen   = 72

	// SlabMinSize is the smallest order book account: envelope plus header.
	SlabMinSize = accountHeaderLen + slabHeaderLen + tailPaddingLen
)

// NodeTag identifies the kind of a slab node.
type NodeTag uint32

const (
	NodeUninitialized NodeTag = 0
	NodeInner         NodeTag = 1
	NodeLeaf          NodeTag = 2
	NodeFree          NodeTag = 3
	NodeLastFree      NodeTag = 4
)

// SlabHeader is the fixed header preceding the node array.
type SlabHeader struct {
	BumpIndex    uint64 // Nodes at or beyond this index were never allocated
	FreeListLen  uint64
	FreeListHead uint32
	Root         uint32
	LeafCount    uint64
}

// Leaf node body, offsets relative to the start of the node (after the tag).
const (
	leafOwnerSlot = 0
	leafFeeTier   = 1
	leafKey       = 4
	leafOwner     = 20
	leafQuantity  = 52
	leafClientID  = 60
)

// DecodeOrderBookSide interprets one side of the book and returns its live
// orders in node-array order. Only leaf nodes inside the allocated range
// count as live; inner, free and never-used slots are skipped. Price and
// Size are left zero because they depend on market lot sizes.
func DecodeOrderBookSide(data []byte, side domain.Side) ([]domain.Order, error) {
	layout, kind := LayoutBids, FlagBids
	if side == domain.SideSell {
		layout, kind = LayoutAsks, FlagAsks
	}

	header, nodes, err := decodeSlab(layout, kind, data)
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, header.LeafCount)
	for i := uint64(0); i < header.BumpIndex; i++ {
		node := nodes[i*slabNodeLen : (i+1)*slabNodeLen]
		if NodeTag(binary.LittleEndian.Uint32(node[0:4])) != NodeLeaf {
			continue
		}
		body := node[4:]
		id := readOrderID(body[leafKey:])
		orders = append(orders, domain.Order{
			ID:           id,
			ClientID:     binary.LittleEndian.Uint64(body[leafClientID:]),
			Side:         side,
			PriceLots:    id.PriceLots(),
			QuantityLots: binary.LittleEndian.Uint64(body[leafQuantity:]),
			Owner:        readPublicKey(body[leafOwner:]),
			OwnerSlot:    body[leafOwnerSlot],
			FeeTier:      body[leafFeeTier],
		})
	}

	if uint64(len(orders)) != header.LeafCount {
		return nil, &domain.MalformedDataError{
			Layout: layout, Expected: len(data), Actual: len(data),
			Reason: fmt.Sprintf("found %d leaves, header says %d", len(orders), header.LeafCount),
		}
	}
	return orders, nil
}

func decodeSlab(layout string, kind AccountFlags, data []byte) (*SlabHeader, []byte, error) {
	flags, body, err := unwrap(layout, data, SlabMinSize)
	if err != nil {
		return nil, nil, err
	}
	if err := checkFlags(layout, flags, kind, len(data)); err != nil {
		return nil, nil, err
	}

	header := &SlabHeader{
		BumpIndex:    binary.LittleEndian.Uint64(body[0:8]),
		FreeListLen:  binary.LittleEndian.Uint64(body[8:16]),
		FreeListHead: binary.LittleEndian.Uint32(body[16:20]),
		Root:         binary.LittleEndian.Uint32(body[20:24]),
		LeafCount:    binary.LittleEndian.Uint64(body[24:32]),
	}
	nodes := body[slabHeaderLen:]
	capacity := uint64(len(nodes) / slabNodeLen)

	if header.BumpIndex > capacity {
		return nil, nil, &domain.MalformedDataError{
			Layout: layout, Expected: len(data), Actual: len(data),
			Reason: fmt.Sprintf("bump index %d beyond capacity %d", header.BumpIndex, capacity),
		}
	}
	if header.LeafCount > header.BumpIndex {
		return nil, nil, &domain.MalformedDataError{
			Layout: layout, Expected: len(data), Actual: len(data),
			Reason: fmt.Sprintf("leaf count %d exceeds allocated nodes %d", header.LeafCount, header.BumpIndex),
		}
	}
	return header, nodes, nil
}
