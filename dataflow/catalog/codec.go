package catalog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/oxbowdb/oxbow/dataflow"
)

// Schema records are stored as a small versioned binary encoding:
//
//	version u8 | ncols u16 | (type u8, nullable u8)* | nkeys u16 | (klen u16, col u16*)*
const schemaVersion = 1

// EncodeSchema serializes a relation type.
func EncodeSchema(typ dataflow.RelationType) []byte {
	var b bytes.Buffer
	b.WriteByte(schemaVersion)
	writeU16(&b, len(typ.Columns))
	for _, c := range typ.Columns {
		b.WriteByte(byte(c.Type))
		if c.Nullable {
			b.WriteByte(1)
		} else {
			b.WriteByte(0)
		}
	}
	keys := typ.Keys()
	writeU16(&b, len(keys))
	for _, key := range keys {
		writeU16(&b, len(key))
		for _, col := range key {
			writeU16(&b, col)
		}
	}
	return b.Bytes()
}

// DecodeSchema deserializes a relation type.
func DecodeSchema(data []byte) (dataflow.RelationType, error) {
	r := bytes.NewReader(data)
	version, err := r.ReadByte()
	if err != nil {
		return dataflow.RelationType{}, fmt.Errorf("schema record truncated: %w", err)
	}
	if version != schemaVersion {
		return dataflow.RelationType{}, fmt.Errorf("unsupported schema version %d", version)
	}
	ncols, err := readU16(r)
	if err != nil {
		return dataflow.RelationType{}, err
	}
	columns := make([]dataflow.ColumnType, ncols)
	for i := range columns {
		t, err := r.ReadByte()
		if err != nil {
			return dataflow.RelationType{}, fmt.Errorf("schema record truncated: %w", err)
		}
		n, err := r.ReadByte()
		if err != nil {
			return dataflow.RelationType{}, fmt.Errorf("schema record truncated: %w", err)
		}
		columns[i] = dataflow.ColumnType{Type: dataflow.ScalarType(t), Nullable: n != 0}
	}
	typ := dataflow.NewRelationType(columns)
	nkeys, err := readU16(r)
	if err != nil {
		return dataflow.RelationType{}, err
	}
	for i := 0; i < nkeys; i++ {
		klen, err := readU16(r)
		if err != nil {
			return dataflow.RelationType{}, err
		}
		key := make([]int, klen)
		for j := range key {
			col, err := readU16(r)
			if err != nil {
				return dataflow.RelationType{}, err
			}
			key[j] = col
		}
		typ = typ.WithKey(key)
	}
	if err := typ.Validate(); err != nil {
		return dataflow.RelationType{}, fmt.Errorf("decoded schema invalid: %w", err)
	}
	return typ, nil
}

func writeU16(b *bytes.Buffer, v int) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(v))
	b.Write(buf[:])
}

func readU16(r *bytes.Reader) (int, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("schema record truncated: %w", err)
	}
	return int(binary.BigEndian.Uint16(buf[:])), nil
}
