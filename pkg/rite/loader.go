package rite

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mrbc-go/mrbcvm/pkg/symbol"
)

// Magic is the only accepted binary header identifier; implementers
// should centralize the version check here rather than scattering it
// across the loader (spec.md §9 Bytecode evolution).
const Magic = "RITE0300"

const (
	headerSize     = 20 // magic(8) + total size(4) + compiler tag(8)
	sectionHdrSize = 12 // tag(4) + length(4) + reserved(4)
)

var (
	tagIREP = [4]byte{'I', 'R', 'E', 'P'}
	tagEnd  = [4]byte{'E', 'N', 'D', 0}
)

// Load decodes a RITE0300 byte buffer into its root IREP, interning every
// symbol name it finds into symbols. All multi-byte integers are
// big-endian (spec.md §6).
//
// PoolSharedString literals alias data directly: the caller must keep
// data alive for as long as the returned IREP tree is in use.
func Load(data []byte, symbols *symbol.Table) (*IREP, error) {
	if len(data) < headerSize || string(data[:8]) != Magic {
		return nil, newLoadError(PhaseFileHeader, 0, fmt.Errorf("bad or missing %q header", Magic))
	}
	totalSize := binary.BigEndian.Uint32(data[8:12])
	if int(totalSize) > len(data) {
		return nil, newLoadError(PhaseFileHeader, 1, fmt.Errorf("declared size %d exceeds buffer length %d", totalSize, len(data)))
	}

	pos := headerSize
	var root *IREP

	for pos+sectionHdrSize <= len(data) {
		var tag [4]byte
		copy(tag[:], data[pos:pos+4])
		length := binary.BigEndian.Uint32(data[pos+4 : pos+8])
		if length < sectionHdrSize || pos+int(length) > len(data) {
			return nil, newLoadError(PhaseIREPSection, 0, fmt.Errorf("section %q has invalid length %d", tag, length))
		}
		bodyStart := pos + sectionHdrSize
		bodyEnd := pos + int(length)

		switch tag {
		case tagEnd:
			return root, nil
		case tagIREP:
			irep, _, err := parseIREP(data[bodyStart:bodyEnd], 0, symbols)
			if err != nil {
				return nil, err
			}
			root = irep
		default:
			// Unknown section tags are skipped, per spec.md §4.4.
		}
		pos = bodyEnd
	}

	if root == nil {
		return nil, newLoadError(PhaseIREPSection, 0, fmt.Errorf("no IREP section found"))
	}
	return root, nil
}

// parseIREP decodes one IREP record (and, recursively, its children)
// starting at buf[pos], returning the node and the position just past it.
func parseIREP(buf []byte, pos int, symbols *symbol.Table) (*IREP, int, error) {
	const fixedHeader = 4 + 2 + 2 + 2 + 4
	if pos+fixedHeader > len(buf) {
		return nil, pos, newLoadError(PhaseIREPSection, 1, fmt.Errorf("truncated IREP header"))
	}

	_ = binary.BigEndian.Uint32(buf[pos : pos+4]) // record length, informational
	pos += 4
	localCount := int(binary.BigEndian.Uint16(buf[pos : pos+2]))
	pos += 2
	regCount := int(binary.BigEndian.Uint16(buf[pos : pos+2]))
	pos += 2
	childCount := int(binary.BigEndian.Uint16(buf[pos : pos+2]))
	pos += 2
	codeLen := int(binary.BigEndian.Uint32(buf[pos : pos+4]))
	pos += 4

	if pos+codeLen > len(buf) {
		return nil, pos, newLoadError(PhaseIREPSection, 2, fmt.Errorf("truncated instruction bytes"))
	}
	code := append([]byte(nil), buf[pos:pos+codeLen]...)
	pos += codeLen

	if pos+2 > len(buf) {
		return nil, pos, newLoadError(PhasePoolLiteral, 0, fmt.Errorf("truncated pool count"))
	}
	poolCount := int(binary.BigEndian.Uint16(buf[pos : pos+2]))
	pos += 2

	pool := make([]PoolLiteral, poolCount)
	for i := 0; i < poolCount; i++ {
		lit, newPos, err := parsePoolLiteral(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		pool[i] = lit
		pos = newPos
	}

	if pos+2 > len(buf) {
		return nil, pos, newLoadError(PhaseIREPSection, 3, fmt.Errorf("truncated symbol count"))
	}
	symCount := int(binary.BigEndian.Uint16(buf[pos : pos+2]))
	pos += 2

	syms := make([]symbol.ID, symCount)
	for i := 0; i < symCount; i++ {
		if pos+2 > len(buf) {
			return nil, pos, newLoadError(PhaseIREPSection, 4, fmt.Errorf("truncated symbol name length"))
		}
		nameLen := int(binary.BigEndian.Uint16(buf[pos : pos+2]))
		pos += 2
		if pos+nameLen > len(buf) {
			return nil, pos, newLoadError(PhaseIREPSection, 5, fmt.Errorf("truncated symbol name"))
		}
		name := string(buf[pos : pos+nameLen])
		pos += nameLen

		id, err := symbols.Intern(name)
		if err != nil {
			return nil, pos, newLoadError(PhaseNoMemory, 0, err)
		}
		syms[i] = id
	}

	children := make([]*IREP, childCount)
	for i := 0; i < childCount; i++ {
		child, newPos, err := parseIREP(buf, pos, symbols)
		if err != nil {
			return nil, pos, err
		}
		children[i] = child
		pos = newPos
	}

	return &IREP{
		LocalCount:    localCount,
		RegisterCount: regCount,
		Symbols:       syms,
		Pool:          pool,
		Code:          code,
		Children:      children,
	}, pos, nil
}

func parsePoolLiteral(buf []byte, pos int) (PoolLiteral, int, error) {
	if pos+1 > len(buf) {
		return PoolLiteral{}, pos, newLoadError(PhasePoolLiteral, 1, fmt.Errorf("truncated pool kind"))
	}
	kind := PoolKind(buf[pos])
	pos++

	switch kind {
	case PoolString, PoolSharedString:
		if pos+2 > len(buf) {
			return PoolLiteral{}, pos, newLoadError(PhasePoolLiteral, 2, fmt.Errorf("truncated string length"))
		}
		length := int(binary.BigEndian.Uint16(buf[pos : pos+2]))
		pos += 2
		if pos+length > len(buf) {
			return PoolLiteral{}, pos, newLoadError(PhasePoolLiteral, 3, fmt.Errorf("truncated string bytes"))
		}
		raw := buf[pos : pos+length]
		pos += length
		if kind == PoolString {
			return PoolLiteral{Kind: kind, Bytes: append([]byte(nil), raw...)}, pos, nil
		}
		return PoolLiteral{Kind: kind, Bytes: raw}, pos, nil

	case PoolInt32:
		if pos+4 > len(buf) {
			return PoolLiteral{}, pos, newLoadError(PhasePoolLiteral, 4, fmt.Errorf("truncated int32"))
		}
		v := int32(binary.BigEndian.Uint32(buf[pos : pos+4]))
		pos += 4
		return PoolLiteral{Kind: kind, Int: int64(v)}, pos, nil

	case PoolInt64:
		if pos+8 > len(buf) {
			return PoolLiteral{}, pos, newLoadError(PhasePoolLiteral, 5, fmt.Errorf("truncated int64"))
		}
		v := int64(binary.BigEndian.Uint64(buf[pos : pos+8]))
		pos += 8
		return PoolLiteral{Kind: kind, Int: v}, pos, nil

	case PoolFloat:
		if pos+8 > len(buf) {
			return PoolLiteral{}, pos, newLoadError(PhasePoolLiteral, 6, fmt.Errorf("truncated float"))
		}
		bits := binary.BigEndian.Uint64(buf[pos : pos+8])
		pos += 8
		return PoolLiteral{Kind: kind, Float: math.Float64frombits(bits)}, pos, nil

	default:
		return PoolLiteral{}, pos, newLoadError(PhasePoolLiteral, 7, fmt.Errorf("unknown pool literal kind %d", kind))
	}
}
