package nodestore

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/tokenvault/tokenvaultd/internal/storage/nodestore/compression"
)

// On-disk node layout: type(4) | ledgerSeq(4) | createdAt(8) |
// dataLen(4) | data | compressedFlag(1), little-endian.
const nodeHeaderSize = 4 + 4 + 8 + 4

// minCompressionSize skips compression for tiny payloads.
const minCompressionSize = 128

func encodeNode(node *Node, comp compression.Compressor, level int) ([]byte, error) {
	payload := []byte(node.Data)
	compressed := false

	if comp != nil && comp.Name() != "none" && len(payload) > minCompressionSize {
		c, err := comp.Compress(payload, level)
		// Only keep the compressed form when it actually saves space.
		if err == nil && len(c) < len(payload)*9/10 {
			payload = c
			compressed = true
		}
	}

	buf := make([]byte, nodeHeaderSize+len(payload)+1)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(node.Type))
	binary.LittleEndian.PutUint32(buf[4:8], node.LedgerSeq)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(node.CreatedAt.UnixNano()))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(payload)))
	copy(buf[20:], payload)
	if compressed {
		buf[len(buf)-1] = 1
	}
	return buf, nil
}

func decodeNode(hash Hash256, data []byte, comp compression.Compressor) (*Node, error) {
	if len(data) < nodeHeaderSize+1 {
		return nil, fmt.Errorf("short node encoding: %d bytes", len(data))
	}

	nodeType := NodeType(binary.LittleEndian.Uint32(data[0:4]))
	ledgerSeq := binary.LittleEndian.Uint32(data[4:8])
	createdNanos := int64(binary.LittleEndian.Uint64(data[8:16]))
	payloadLen := int(binary.LittleEndian.Uint32(data[16:20]))

	if nodeHeaderSize+payloadLen+1 > len(data) {
		return nil, fmt.Errorf("invalid node payload length: %d", payloadLen)
	}

	payload := data[20 : 20+payloadLen]
	compressed := data[20+payloadLen] == 1

	var nodeData Blob
	if compressed {
		if comp == nil {
			return nil, fmt.Errorf("compressed node but no compressor configured")
		}
		decompressed, err := comp.Decompress(payload)
		if err != nil {
			return nil, fmt.Errorf("decompress node: %w", err)
		}
		nodeData = decompressed
	} else {
		nodeData = make(Blob, len(payload))
		copy(nodeData, payload)
	}

	return &Node{
		Type:      nodeType,
		Hash:      hash,
		Data:      nodeData,
		LedgerSeq: ledgerSeq,
		CreatedAt: time.Unix(0, createdNanos),
	}, nil
}
