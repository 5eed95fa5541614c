package formats

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// fbxMagic is the binary FBX file signature, including the trailing NUL.
const fbxMagic = "Kaydara FBX Binary  \x00"

// fbxMaxDepth bounds record nesting so a malformed file cannot drive the
// decoder into unbounded recursion.
const fbxMaxDepth = 256

// FBX format errors.
var (
	errFBXNotBinary  = fmt.Errorf("%w: missing binary FBX magic", ErrUnsupportedFormat)
	errFBXNewVersion = fmt.Errorf("%w: FBX 7.5+ uses 64-bit record offsets", ErrUnsupportedFormat)
	errFBXTruncated  = fmt.Errorf("%w: truncated FBX record", ErrIncompleteData)
)

// FBXProperty is one typed record property. Value holds the decoded Go
// value for the type code:
//
//	Y int16, C bool, I int32, F float32, D float64, L int64,
//	f []float32, d []float64, l []int64, i []int32, b []bool,
//	S string, R []byte
type FBXProperty struct {
	TypeCode byte
	Value    any
}

// FBXNode is one record in the FBX tree: a name, typed properties, and
// nested child records.
type FBXNode struct {
	Name       string
	Properties []FBXProperty
	Children   []*FBXNode
}

// Child returns the first direct child with the given name, or nil.
func (n *FBXNode) Child(name string) *FBXNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// LoadFBX decodes the record tree of a binary FBX file. The returned
// root node is synthetic: its children are the file's top-level records.
// Geometry extraction from the tree is not implemented.
func LoadFBX(path string) (*FBXNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading FBX file: %w", err)
	}
	return ParseFBX(data)
}

// ParseFBX decodes a binary FBX record tree from memory.
func ParseFBX(data []byte) (*FBXNode, error) {
	if len(data) < len(fbxMagic)+6 {
		return nil, errFBXTruncated
	}
	if string(data[:len(fbxMagic)]) != fbxMagic {
		return nil, errFBXNotBinary
	}

	// 2 version-minor bytes follow the magic, then the 4-byte version.
	r := &fbxCursor{data: data, off: len(fbxMagic) + 2}
	version, err := r.u32()
	if err != nil {
		return nil, err
	}
	if version >= 7500 {
		return nil, fmt.Errorf("%w (file version %d)", errFBXNewVersion, version)
	}

	root := &FBXNode{}
	for r.off < len(r.data) {
		node, err := r.record(0)
		if err != nil {
			return nil, err
		}
		if node == nil {
			// Empty-name terminator closes the top-level sibling list.
			break
		}
		root.Children = append(root.Children, node)
	}
	return root, nil
}

// fbxCursor walks the byte stream with explicit bounds checks; every
// overrun becomes a typed error instead of a panic.
type fbxCursor struct {
	data []byte
	off  int
}

func (r *fbxCursor) bytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.data) {
		return nil, errFBXTruncated
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *fbxCursor) u8() (byte, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *fbxCursor) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// record decodes one record: 4-byte end offset, 4-byte property count,
// 4-byte property-list length, 1-byte name length, name bytes,
// properties, then child records up to the declared end offset. A name
// length of 0 terminates the current sibling list and yields nil.
func (r *fbxCursor) record(depth int) (*FBXNode, error) {
	if depth > fbxMaxDepth {
		return nil, fmt.Errorf("%w: records nested deeper than %d", ErrMalformedDocument, fbxMaxDepth)
	}

	start := r.off
	endOffset, err := r.u32()
	if err != nil {
		return nil, err
	}
	numProps, err := r.u32()
	if err != nil {
		return nil, err
	}
	if _, err := r.u32(); err != nil { // property-list byte length
		return nil, err
	}
	nameLen, err := r.u8()
	if err != nil {
		return nil, err
	}
	if nameLen == 0 {
		return nil, nil
	}

	nameBytes, err := r.bytes(int(nameLen))
	if err != nil {
		return nil, err
	}
	node := &FBXNode{Name: string(nameBytes)}

	// The end offset must land past the record's own header, or the
	// cursor would rewind and the caller's sibling loop never advance.
	if int(endOffset) <= start {
		return nil, fmt.Errorf("%w: record %q end offset does not advance", ErrMalformedDocument, node.Name)
	}

	for i := uint32(0); i < numProps; i++ {
		prop, err := r.property()
		if err != nil {
			return nil, fmt.Errorf("record %q property %d: %w", node.Name, i, err)
		}
		node.Properties = append(node.Properties, prop)
	}

	// Any remaining bytes before the declared end offset are child
	// records, closed by an empty-name terminator.
	if int(endOffset) > len(r.data) {
		return nil, errFBXTruncated
	}
	if r.off > int(endOffset) {
		return nil, fmt.Errorf("%w: record %q properties overrun its end offset", ErrMalformedDocument, node.Name)
	}
	for r.off < int(endOffset) {
		child, err := r.record(depth + 1)
		if err != nil {
			return nil, err
		}
		if child == nil {
			break
		}
		node.Children = append(node.Children, child)
	}
	r.off = int(endOffset)

	return node, nil
}

// property decodes one typed property by its 1-byte type tag.
func (r *fbxCursor) property() (FBXProperty, error) {
	code, err := r.u8()
	if err != nil {
		return FBXProperty{}, err
	}
	prop := FBXProperty{TypeCode: code}

	switch code {
	case 'Y':
		b, err := r.bytes(2)
		if err != nil {
			return prop, err
		}
		prop.Value = int16(binary.LittleEndian.Uint16(b))
	case 'C':
		b, err := r.u8()
		if err != nil {
			return prop, err
		}
		prop.Value = b&1 != 0
	case 'I':
		v, err := r.u32()
		if err != nil {
			return prop, err
		}
		prop.Value = int32(v)
	case 'F':
		v, err := r.u32()
		if err != nil {
			return prop, err
		}
		prop.Value = math.Float32frombits(v)
	case 'D':
		b, err := r.bytes(8)
		if err != nil {
			return prop, err
		}
		prop.Value = math.Float64frombits(binary.LittleEndian.Uint64(b))
	case 'L':
		b, err := r.bytes(8)
		if err != nil {
			return prop, err
		}
		prop.Value = int64(binary.LittleEndian.Uint64(b))
	case 'f', 'd', 'l', 'i', 'b':
		value, err := r.array(code)
		if err != nil {
			return prop, err
		}
		prop.Value = value
	case 'S':
		n, err := r.u32()
		if err != nil {
			return prop, err
		}
		b, err := r.bytes(int(n))
		if err != nil {
			return prop, err
		}
		prop.Value = string(b)
	case 'R':
		n, err := r.u32()
		if err != nil {
			return prop, err
		}
		b, err := r.bytes(int(n))
		if err != nil {
			return prop, err
		}
		prop.Value = append([]byte(nil), b...)
	default:
		return prop, fmt.Errorf("%w: invalid property type code %q", ErrMalformedDocument, code)
	}
	return prop, nil
}

// elemSize per array type code.
func fbxElemSize(code byte) int {
	switch code {
	case 'f', 'i':
		return 4
	case 'd', 'l':
		return 8
	default: // 'b'
		return 1
	}
}

// array decodes a length-prefixed array property. Arrays carry an
// element count, an encoding flag, and a compressed byte length; a
// non-zero encoding means the payload is zlib-compressed.
func (r *fbxCursor) array(code byte) (any, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	encoding, err := r.u32()
	if err != nil {
		return nil, err
	}
	compressedLen, err := r.u32()
	if err != nil {
		return nil, err
	}

	rawLen := int(count) * fbxElemSize(code)
	var raw []byte
	if encoding == 0 {
		if raw, err = r.bytes(rawLen); err != nil {
			return nil, err
		}
	} else {
		compressed, err := r.bytes(int(compressedLen))
		if err != nil {
			return nil, err
		}
		zr, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("%w: bad zlib array payload: %v", ErrMalformedDocument, err)
		}
		defer zr.Close()
		// Inflate what the payload actually holds instead of trusting
		// the declared count with an up-front allocation.
		raw, err = io.ReadAll(io.LimitReader(zr, int64(rawLen)+1))
		if err != nil {
			return nil, fmt.Errorf("%w: bad zlib array payload: %v", ErrMalformedDocument, err)
		}
		if len(raw) != rawLen {
			return nil, fmt.Errorf("%w: zlib array payload holds %d bytes, want %d",
				ErrMalformedDocument, len(raw), rawLen)
		}
	}

	switch code {
	case 'f':
		out := make([]float32, count)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return out, nil
	case 'd':
		out := make([]float64, count)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		return out, nil
	case 'l':
		out := make([]int64, count)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		return out, nil
	case 'i':
		out := make([]int32, count)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return out, nil
	default: // 'b'
		out := make([]bool, count)
		for i := range out {
			out[i] = raw[i]&1 != 0
		}
		return out, nil
	}
}
