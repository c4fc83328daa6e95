package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// DefaultCapacity is the number of lessons a record can hold
	DefaultCapacity = 10
	// DefaultMaxLessonIDLength is the maximum lesson id length in bytes
	DefaultMaxLessonIDLength = 32

	// RecordSeed namespaces record addresses derived from an identity
	RecordSeed = "user-progress"
)

// Layout tags stored in the last byte of an encoded record
const (
	LayoutTagPoints  uint8 = 1
	LayoutTagRewards uint8 = 2
)

const (
	discriminatorSize = 8
	lengthPrefixSize  = 4
	pointsSize        = 4
	balanceSize       = 8
	tagSize           = 1
)

var discriminator = [discriminatorSize]byte{'p', 'r', 'o', 'g', 'r', 'e', 's', 's'}

// Layout fixes the capacity of a progress record and therefore its
// serialized size. A record never outgrows the layout it was allocated with.
type Layout struct {
	Capacity          int
	MaxLessonIDLength int
	Rewards           bool // variant with an allocated reward balance
}

// DefaultLayout returns the standard layout with rewards enabled
func DefaultLayout() Layout {
	return Layout{
		Capacity:          DefaultCapacity,
		MaxLessonIDLength: DefaultMaxLessonIDLength,
		Rewards:           true,
	}
}

// Validate checks the layout can describe a record
func (l Layout) Validate() error {
	if l.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidLayout)
	}
	if l.MaxLessonIDLength <= 0 {
		return fmt.Errorf("%w: max lesson id length must be positive", ErrInvalidLayout)
	}
	return nil
}

// Tag returns the variant tag for records allocated with this layout
func (l Layout) Tag() uint8 {
	if l.Rewards {
		return LayoutTagRewards
	}
	return LayoutTagPoints
}

// Size returns the exact serialized size of a record in bytes
func (l Layout) Size() int {
	size := discriminatorSize +
		IdentitySize +
		lengthPrefixSize +
		l.Capacity*(lengthPrefixSize+l.MaxLessonIDLength) +
		pointsSize +
		tagSize
	if l.Rewards {
		size += balanceSize
	}
	return size
}

// Encode serializes r into exactly Size() bytes. Unused lesson slots are zeroed.
func (l Layout) Encode(r *ProgressRecord) ([]byte, error) {
	if r.layoutTag != l.Tag() {
		return nil, fmt.Errorf("%w: record tag %d does not match layout tag %d", ErrInvalidLayout, r.layoutTag, l.Tag())
	}
	if len(r.completedLessons) > l.Capacity {
		return nil, fmt.Errorf("%w: %d lessons exceed capacity %d", ErrOutOfCapacity, len(r.completedLessons), l.Capacity)
	}

	buf := make([]byte, l.Size())
	off := copy(buf, discriminator[:])
	off += copy(buf[off:], r.owner[:])

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(r.completedLessons)))
	off += lengthPrefixSize

	slotSize := lengthPrefixSize + l.MaxLessonIDLength
	for i, id := range r.completedLessons {
		if len(id) > l.MaxLessonIDLength {
			return nil, fmt.Errorf("%w: lesson %d longer than %d bytes", ErrInvalidLessonID, i, l.MaxLessonIDLength)
		}
		slot := buf[off+i*slotSize:]
		binary.LittleEndian.PutUint32(slot, uint32(len(id)))
		copy(slot[lengthPrefixSize:], id)
	}
	off += l.Capacity * slotSize

	binary.LittleEndian.PutUint32(buf[off:], r.points)
	off += pointsSize

	if l.Rewards {
		binary.LittleEndian.PutUint64(buf[off:], r.allocatedBalance)
		off += balanceSize
	}

	buf[off] = r.layoutTag
	return buf, nil
}

// Decode parses bytes produced by Encode with the same layout
func (l Layout) Decode(data []byte) (*ProgressRecord, error) {
	if len(data) != l.Size() {
		return nil, fmt.Errorf("%w: size %d, layout expects %d", ErrCorruptRecord, len(data), l.Size())
	}
	if !bytes.Equal(data[:discriminatorSize], discriminator[:]) {
		return nil, fmt.Errorf("%w: bad discriminator", ErrCorruptRecord)
	}
	off := discriminatorSize

	r := &ProgressRecord{layout: l}
	copy(r.owner[:], data[off:off+IdentitySize])
	off += IdentitySize
	if r.owner.IsZero() {
		return nil, fmt.Errorf("%w: missing owner", ErrCorruptRecord)
	}

	count := int(binary.LittleEndian.Uint32(data[off:]))
	off += lengthPrefixSize
	if count > l.Capacity {
		return nil, fmt.Errorf("%w: %d lessons exceed capacity %d", ErrCorruptRecord, count, l.Capacity)
	}

	slotSize := lengthPrefixSize + l.MaxLessonIDLength
	r.completedLessons = make([]LessonID, 0, l.Capacity)
	seen := make(map[LessonID]struct{}, count)
	for i := 0; i < count; i++ {
		slot := data[off+i*slotSize : off+(i+1)*slotSize]
		n := int(binary.LittleEndian.Uint32(slot))
		if n == 0 || n > l.MaxLessonIDLength {
			return nil, fmt.Errorf("%w: lesson %d has length %d", ErrCorruptRecord, i, n)
		}
		id := LessonID(slot[lengthPrefixSize : lengthPrefixSize+n])
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate lesson %q", ErrCorruptRecord, id)
		}
		seen[id] = struct{}{}
		r.completedLessons = append(r.completedLessons, id)
	}
	off += l.Capacity * slotSize

	r.points = binary.LittleEndian.Uint32(data[off:])
	off += pointsSize

	if l.Rewards {
		r.allocatedBalance = binary.LittleEndian.Uint64(data[off:])
		off += balanceSize
	}

	r.layoutTag = data[off]
	if r.layoutTag != l.Tag() {
		return nil, fmt.Errorf("%w: tag %d, layout expects %d", ErrCorruptRecord, r.layoutTag, l.Tag())
	}
	return r, nil
}
