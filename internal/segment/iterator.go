package segment

// Iterator produces a lazy, finite, single-pass sequence of records read
// from a segment's read handle, starting at offset 0. It stops the moment a
// read fails to produce a complete record — short header, short key, short
// value, EOF, or a header with a zero key length (keys are never empty) —
// rather than surfacing an error: a torn trailing record is "not yet
// committed" and is simply not observed.
type Iterator struct {
	seg    *Segment
	offset int64
	done   bool
}

// NewIterator starts a forward scan of seg from offset 0.
func NewIterator(seg *Segment) *Iterator {
	return &Iterator{seg: seg}
}

// Next returns the next fully-parsed item, or ok=false once the scan has
// stopped (either because it reached the end of committed data or a torn
// tail). After ok is false, Offset reports the offset of the first byte
// that did not parse as a complete record.
func (it *Iterator) Next() (item Item, ok bool) {
	if it.done {
		return Item{}, false
	}

	header := make([]byte, headerSize)
	n, err := it.seg.readFile.ReadAt(header, it.offset)
	if err != nil || n < headerSize {
		it.done = true
		return Item{}, false
	}

	keySize, valueSize, err := decodeHeader(header)
	if err != nil || keySize == 0 {
		it.done = true
		return Item{}, false
	}

	bodyLen := int64(keySize) + int64(valueSize)
	body := make([]byte, bodyLen)
	n2, err := it.seg.readFile.ReadAt(body, it.offset+headerSize)
	if err != nil || int64(n2) < bodyLen {
		it.done = true
		return Item{}, false
	}

	out := Item{
		Key:         body[:keySize],
		Value:       body[keySize:],
		ItemOffset:  it.offset,
		ValueOffset: it.offset + headerSize + int64(keySize),
	}
	it.offset += headerSize + bodyLen
	return out, true
}

// Offset is the iterator's current position: the end of the last fully
// parsed record, or the start of a torn record once the scan has stopped.
func (it *Iterator) Offset() int64 {
	return it.offset
}
