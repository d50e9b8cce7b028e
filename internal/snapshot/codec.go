// Package snapshot implements the resync protocol pieces from SPEC_FULL
// §4.9: a correlation-tagged resync Request, and framing plus compression
// of a SNAPSHOT_START..SNAPSHOT_END replay for transport between producer
// and consumer processes. The participant book does not call into this
// package; on a gap it only returns SequenceGap from Apply.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/matchcore/lob/internal/common"
	"github.com/matchcore/lob/internal/matching"
)

func uintTicker(v uint32) common.TickerId     { return common.TickerId(v) }
func uintOrderId(v uint64) common.OrderId     { return common.OrderId(v) }
func sideFromInt(v int8) common.Side          { return common.Side(v) }
func priceFromInt(v int64) common.Price       { return common.Price(v) }
func qtyFromUint(v uint32) common.Qty         { return common.Qty(v) }
func priorityFromUint(v uint64) common.Priority { return common.Priority(v) }

// Request is a resync request built with NewRequest after a SequenceGap;
// the correlation id ties the eventual resync reply back to this specific
// request for audit trails.
type Request struct {
	CorrelationId uuid.UUID
}

// NewRequest mints a fresh resync request.
func NewRequest() Request {
	return Request{CorrelationId: uuid.New()}
}

// wireUpdate is the fixed-width encoding of one PublicUpdate used inside
// a snapshot frame. Field order matches matching.PublicUpdate.
type wireUpdate struct {
	Kind          uint8
	_             [7]byte // padding, written as zero bytes
	Ticker        uint32
	Seq           uint64
	MarketOrderId uint64
	Side          int8
	_             [7]byte
	Price         int64
	Qty           uint32
	_             [4]byte
	Priority      uint64
	CorrelationId [16]byte
}

func toWire(u matching.PublicUpdate) wireUpdate {
	return wireUpdate{
		Kind:          uint8(u.Kind),
		Ticker:        uint32(u.Ticker),
		Seq:           u.Seq,
		MarketOrderId: uint64(u.MarketOrderId),
		Side:          int8(u.Side),
		Price:         int64(u.Price),
		Qty:           uint32(u.Qty),
		Priority:      uint64(u.Priority),
		CorrelationId: u.CorrelationId,
	}
}

func fromWire(w wireUpdate) matching.PublicUpdate {
	return matching.PublicUpdate{
		Kind:          matching.UpdateKind(w.Kind),
		Ticker:        uintTicker(w.Ticker),
		Seq:           w.Seq,
		MarketOrderId: uintOrderId(w.MarketOrderId),
		Side:          sideFromInt(w.Side),
		Price:         priceFromInt(w.Price),
		Qty:           qtyFromUint(w.Qty),
		Priority:      priorityFromUint(w.Priority),
		CorrelationId: w.CorrelationId,
	}
}

// Encode frames a sequence of updates (a SNAPSHOT_START..SNAPSHOT_END run,
// or any update batch worth shipping compressed) and compresses the
// result with zstd.
func Encode(updates []matching.PublicUpdate) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(updates))); err != nil {
		return nil, fmt.Errorf("snapshot: write header: %w", err)
	}
	for _, u := range updates {
		if err := binary.Write(&buf, binary.LittleEndian, toWire(u)); err != nil {
			return nil, fmt.Errorf("snapshot: write update: %w", err)
		}
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: new zstd writer: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(buf.Bytes(), nil), nil
}

// Decode reverses Encode.
func Decode(compressed []byte) ([]matching.PublicUpdate, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: new zstd reader: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: decompress: %w", err)
	}

	r := bytes.NewReader(raw)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("snapshot: read header: %w", err)
	}

	updates := make([]matching.PublicUpdate, 0, count)
	for i := uint32(0); i < count; i++ {
		var w wireUpdate
		if err := binary.Read(r, binary.LittleEndian, &w); err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("snapshot: truncated frame")
			}
			return nil, fmt.Errorf("snapshot: read update: %w", err)
		}
		updates = append(updates, fromWire(w))
	}
	return updates, nil
}
