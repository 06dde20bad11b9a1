// Package p2p provides message serialization for network communication.
package p2p

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/minagoat/ccore/internal/txn"
	"github.com/minagoat/ccore/pkg/types"
)

// Message types
const (
	MsgTypeBlock       uint8 = 0x01
	MsgTypeTransaction uint8 = 0x02
	MsgTypeGetBlocks   uint8 = 0x10
	MsgTypeGetTxs      uint8 = 0x11
	MsgTypeStatus      uint8 = 0x20
	MsgTypePing        uint8 = 0x30
	MsgTypePong        uint8 = 0x31
)

// Message errors
var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooLarge    = errors.New("message too large")
)

// MaxMessageSize is the maximum size of a network message.
const MaxMessageSize = 32 * 1024 * 1024 // 32 MB

// Message represents a network message.
type Message struct {
	Type    uint8
	Payload []byte
}

// BlockMessage wraps a block for network transmission.
type BlockMessage struct {
	Block *txn.Block
}

// TransactionMessage wraps a transaction for network transmission.
type TransactionMessage struct {
	Transaction *txn.Transaction
}

// GetBlocksMessage requests blocks starting at a given block hash.
type GetBlocksMessage struct {
	StartHash types.Hash
	Count     uint32
}

// StatusMessage exchanges node status on first connect, the minimal
// handshake spec.md leaves to "p2p is an opaque transport" (SPEC_FULL.md):
// enough for a peer to tell whether it is ahead, behind, or on a
// different root entirely.
type StatusMessage struct {
	Version           uint32
	Height            uint64
	BestHash          types.Hash
	GenesisSnarkedRoot types.Hash
}

// Encode serializes a message for network transmission.
func (m *Message) Encode(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, m.Type); err != nil {
		return err
	}
	payloadLen := uint32(len(m.Payload))
	if err := binary.Write(w, binary.BigEndian, payloadLen); err != nil {
		return err
	}
	_, err := w.Write(m.Payload)
	return err
}

// Decode deserializes a message from network data.
func (m *Message) Decode(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, &m.Type); err != nil {
		return err
	}
	var payloadLen uint32
	if err := binary.Read(r, binary.BigEndian, &payloadLen); err != nil {
		return err
	}
	if payloadLen > MaxMessageSize {
		return ErrMessageTooLarge
	}
	m.Payload = make([]byte, payloadLen)
	_, err := io.ReadFull(r, m.Payload)
	return err
}

// EncodeBlock serializes a block message: its header followed by its
// transactions, each via txn.Transaction.Marshal.
func EncodeBlock(block *txn.Block) []byte {
	h := block.Header
	buf := make([]byte, 0, 256)
	buf = append(buf, h.Hash[:]...)
	buf = append(buf, h.ParentHash[:]...)
	buf = binary.BigEndian.AppendUint64(buf, h.Height)
	buf = binary.BigEndian.AppendUint32(buf, h.GlobalSlotSinceGenesis)
	buf = append(buf, h.SnarkedLedgerHash[:]...)
	buf = binary.BigEndian.AppendUint64(buf, h.TotalCurrency)

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(block.Transactions)))
	for _, tx := range block.Transactions {
		txData := tx.Marshal()
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(txData)))
		buf = append(buf, txData...)
	}
	return buf
}

// DecodeBlock deserializes a block message written by EncodeBlock.
func DecodeBlock(data []byte) (*txn.Block, error) {
	const headerLen = 32 + 32 + 8 + 4 + 32 + 8
	if len(data) < headerLen+4 {
		return nil, errors.New("p2p: block message too short")
	}
	block := &txn.Block{}
	pos := 0
	copy(block.Header.Hash[:], data[pos:pos+32])
	pos += 32
	copy(block.Header.ParentHash[:], data[pos:pos+32])
	pos += 32
	block.Header.Height = binary.BigEndian.Uint64(data[pos : pos+8])
	pos += 8
	block.Header.GlobalSlotSinceGenesis = binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4
	copy(block.Header.SnarkedLedgerHash[:], data[pos:pos+32])
	pos += 32
	block.Header.TotalCurrency = binary.BigEndian.Uint64(data[pos : pos+8])
	pos += 8

	count := binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4
	block.Transactions = make([]*txn.Transaction, 0, count)
	for i := uint32(0); i < count; i++ {
		if pos+4 > len(data) {
			return nil, errors.New("p2p: truncated block message")
		}
		n := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
		if pos+int(n) > len(data) {
			return nil, errors.New("p2p: truncated block message")
		}
		tx, err := txn.Unmarshal(data[pos : pos+int(n)])
		if err != nil {
			return nil, err
		}
		block.Transactions = append(block.Transactions, tx)
		pos += int(n)
	}
	return block, nil
}

// EncodeTransaction serializes a single transaction for gossip.
func EncodeTransaction(tx *txn.Transaction) []byte {
	return tx.Marshal()
}

// DecodeTransaction deserializes a single gossiped transaction.
func DecodeTransaction(data []byte) (*txn.Transaction, error) {
	return txn.Unmarshal(data)
}

// EncodeStatus serializes a status message.
func EncodeStatus(status *StatusMessage) []byte {
	buf := make([]byte, 0, 76)
	buf = binary.BigEndian.AppendUint32(buf, status.Version)
	buf = binary.BigEndian.AppendUint64(buf, status.Height)
	buf = append(buf, status.BestHash[:]...)
	buf = append(buf, status.GenesisSnarkedRoot[:]...)
	return buf
}

// DecodeStatus deserializes a status message.
func DecodeStatus(data []byte) (*StatusMessage, error) {
	const wantLen = 4 + 8 + 32 + 32
	if len(data) < wantLen {
		return nil, errors.New("p2p: status message too short")
	}
	status := &StatusMessage{
		Version: binary.BigEndian.Uint32(data[0:4]),
		Height:  binary.BigEndian.Uint64(data[4:12]),
	}
	copy(status.BestHash[:], data[12:44])
	copy(status.GenesisSnarkedRoot[:], data[44:76])
	return status, nil
}

// EncodeGetBlocks serializes a get-blocks request.
func EncodeGetBlocks(m *GetBlocksMessage) []byte {
	buf := make([]byte, 0, 36)
	buf = append(buf, m.StartHash[:]...)
	buf = binary.BigEndian.AppendUint32(buf, m.Count)
	return buf
}

// DecodeGetBlocks deserializes a get-blocks request.
func DecodeGetBlocks(data []byte) (*GetBlocksMessage, error) {
	if len(data) < 36 {
		return nil, errors.New("p2p: get-blocks message too short")
	}
	m := &GetBlocksMessage{Count: binary.BigEndian.Uint32(data[32:36])}
	copy(m.StartHash[:], data[0:32])
	return m, nil
}
