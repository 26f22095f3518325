package hal

import (
	"encoding/binary"
	"unsafe"
)

// TCDSize is the size of a transfer control descriptor in bytes.
const TCDSize = 32

// TCDAlign is the alignment the engine requires of descriptors it loads
// through scatter/gather.
const TCDAlign = 32

// Compile-time check that TCD matches the hardware record size.
var _ [TCDSize]byte = [unsafe.Sizeof(TCD{})]byte{}

// TCD is a transfer control descriptor. The field order and widths match the
// engine's per-channel register window so a TCD can be copied into the
// window verbatim or loaded by the engine from memory.
type TCD struct {
	// SADDR: Source address
	SAddr uint32
	// SOFF: Signed source offset applied after each read
	SOff int16
	// ATTR: Transfer attributes
	//   Bits 0-2: DSIZE (destination data transfer size)
	//   Bits 3-7: DMOD (destination address modulo)
	//   Bits 8-10: SSIZE (source data transfer size)
	//   Bits 11-15: SMOD (source address modulo)
	Attr uint16
	// NBYTES: Minor loop byte count
	NBytes uint32
	// SLAST: Adjustment applied to SADDR at major loop completion
	SLast int32
	// DADDR: Destination address
	DAddr uint32
	// DOFF: Signed destination offset applied after each write
	DOff int16
	// CITER: Current major iteration count
	//   ELINK=0: Bits 0-14 CITER
	//   ELINK=1: Bits 0-8 CITER, Bits 9-14 LINKCH
	//   Bit 15: ELINK (minor loop channel link)
	CIter uint16
	// DLAST_SGA: Destination last adjustment, or the scatter/gather address
	// of the next TCD when CSR[ESG] is set
	DLastSGA uint32
	// CSR: Control and status
	CSR uint16
	// BITER: Beginning major iteration count, layout matches CITER
	BIter uint16
}

// CSR bits.
const (
	CSRStart      uint16 = 1 << 0 // Explicit software start
	CSRIntMajor   uint16 = 1 << 1 // Interrupt on major loop complete
	CSRIntHalf    uint16 = 1 << 2 // Interrupt on major loop half complete
	CSRDReq       uint16 = 1 << 3 // Clear the request enable at major loop complete
	CSRESG        uint16 = 1 << 4 // Scatter/gather enable
	CSRMajorELink uint16 = 1 << 5 // Link to another channel on major loop complete
	CSRActive     uint16 = 1 << 6 // Channel executing (hardware owned)
	CSRDone       uint16 = 1 << 7 // Major loop complete (hardware owned)

	csrMajorLinkShift = 8
	csrMajorLinkMask  = 0x1F << csrMajorLinkShift
	csrBWCShift       = 14
	csrBWCMask        = 0x3 << csrBWCShift
)

// Iteration counter fields.
const (
	IterELink      uint16 = 1 << 15
	IterCountMask  uint16 = 0x7FFF // Count when ELINK=0
	IterLinkedMask uint16 = 0x01FF // Count when ELINK=1
	iterLinkChMask uint16 = 0x3F << iterLinkChShift
)

const iterLinkChShift = 9

// Largest major iteration counts with minor linking disabled and enabled.
const (
	MaxMajorCount       = int(IterCountMask)
	MaxLinkedMajorCount = int(IterLinkedMask)
)

// Attribute fields.
const (
	attrDSizeShift = 0
	attrDModShift  = 3
	attrSSizeShift = 8
	attrSModShift  = 11
	attrSizeMask   = 0x7
	attrModMask    = 0x1F
)

// TransferSize is the encoded width of one engine read or write.
type TransferSize uint8

// Transfer sizes.
const (
	TransferSize1  TransferSize = 0
	TransferSize2  TransferSize = 1
	TransferSize4  TransferSize = 2
	TransferSize8  TransferSize = 3
	TransferSize16 TransferSize = 4
	TransferSize32 TransferSize = 5
)

// Bytes returns the number of bytes moved by one access of this size.
func (s TransferSize) Bytes() uint32 {
	if s > TransferSize32 {
		return 0
	}
	return 1 << s
}

// TransferSizeOf returns the encoding for an access width in bytes.
func TransferSizeOf(bytes uint32) (TransferSize, bool) {
	switch bytes {
	case 1:
		return TransferSize1, true
	case 2:
		return TransferSize2, true
	case 4:
		return TransferSize4, true
	case 8:
		return TransferSize8, true
	case 16:
		return TransferSize16, true
	case 32:
		return TransferSize32, true
	}
	return 0, false
}

// Reset clears every field.
func (t *TCD) Reset() {
	*t = TCD{}
}

// Has reports whether all bits in mask are set in CSR.
func (t *TCD) Has(mask uint16) bool {
	return t.CSR&mask == mask
}

// SetFlags sets the bits in mask in CSR.
func (t *TCD) SetFlags(mask uint16) {
	t.CSR |= mask
}

// ClearFlags clears the bits in mask in CSR.
func (t *TCD) ClearFlags(mask uint16) {
	t.CSR &^= mask
}

// SetAttr encodes source/destination sizes and address modulos.
func (t *TCD) SetAttr(src, dst TransferSize, smod, dmod uint8) {
	t.Attr = uint16(src&attrSizeMask)<<attrSSizeShift |
		uint16(dst&attrSizeMask)<<attrDSizeShift |
		uint16(smod&attrModMask)<<attrSModShift |
		uint16(dmod&attrModMask)<<attrDModShift
}

// SourceSize returns the encoded source access size.
func (t *TCD) SourceSize() TransferSize {
	return TransferSize(t.Attr >> attrSSizeShift & attrSizeMask)
}

// DestSize returns the encoded destination access size.
func (t *TCD) DestSize() TransferSize {
	return TransferSize(t.Attr >> attrDSizeShift & attrSizeMask)
}

// SourceModulo returns the source address modulo (0 disables).
func (t *TCD) SourceModulo() uint8 {
	return uint8(t.Attr >> attrSModShift & attrModMask)
}

// DestModulo returns the destination address modulo (0 disables).
func (t *TCD) DestModulo() uint8 {
	return uint8(t.Attr >> attrDModShift & attrModMask)
}

// IterCount decodes an iteration counter, honoring its ELINK layout.
func IterCount(iter uint16) uint16 {
	if iter&IterELink != 0 {
		return iter & IterLinkedMask
	}
	return iter & IterCountMask
}

// IterLinkedChannel returns the minor-link channel of an iteration counter
// and whether minor linking is enabled.
func IterLinkedChannel(iter uint16) (uint8, bool) {
	if iter&IterELink == 0 {
		return 0, false
	}
	return uint8((iter & iterLinkChMask) >> iterLinkChShift), true
}

// withCount replaces the count of an iteration counter in place, keeping the
// link fields.
func withCount(iter uint16, n uint16) uint16 {
	if iter&IterELink != 0 {
		return iter&^IterLinkedMask | n&IterLinkedMask
	}
	return iter&^IterCountMask | n&IterCountMask
}

// MajorCount returns the current major iteration count.
func (t *TCD) MajorCount() uint16 {
	return IterCount(t.CIter)
}

// SetMajorCount sets both CITER and BITER to n, keeping any minor link.
func (t *TCD) SetMajorCount(n uint16) {
	t.CIter = withCount(t.CIter, n)
	t.BIter = withCount(t.BIter, n)
}

// SetMinorLink enables minor-loop channel linking to ch. It narrows the
// iteration count field, so set it before SetMajorCount.
func (t *TCD) SetMinorLink(ch uint8) {
	link := IterELink | uint16(ch)<<iterLinkChShift&iterLinkChMask
	t.CIter = link | t.CIter&IterLinkedMask
	t.BIter = link | t.BIter&IterLinkedMask
}

// ClearMinorLink disables minor-loop channel linking.
func (t *TCD) ClearMinorLink() {
	t.CIter &= IterLinkedMask
	t.BIter &= IterLinkedMask
}

// SetMajorLink enables major-loop channel linking to ch.
func (t *TCD) SetMajorLink(ch uint8) {
	t.CSR = t.CSR&^csrMajorLinkMask | uint16(ch&0x1F)<<csrMajorLinkShift | CSRMajorELink
}

// ClearMajorLink disables major-loop channel linking.
func (t *TCD) ClearMajorLink() {
	t.CSR &^= csrMajorLinkMask | CSRMajorELink
}

// MajorLinkedChannel returns the major-link channel and whether major
// linking is enabled.
func (t *TCD) MajorLinkedChannel() (uint8, bool) {
	if t.CSR&CSRMajorELink == 0 {
		return 0, false
	}
	return uint8((t.CSR & csrMajorLinkMask) >> csrMajorLinkShift), true
}

// SetBandwidth sets the CSR bandwidth control field (engine stalls after
// each read/write; 0 = none, 2 = 4 cycles, 3 = 8 cycles).
func (t *TCD) SetBandwidth(bwc uint8) {
	t.CSR = t.CSR&^csrBWCMask | uint16(bwc&0x3)<<csrBWCShift
}

// Bandwidth returns the CSR bandwidth control field.
func (t *TCD) Bandwidth() uint8 {
	return uint8((t.CSR & csrBWCMask) >> csrBWCShift)
}

// ParseTCD decodes a little-endian descriptor image into out.
// Returns false if data is too short.
func ParseTCD(data []byte, out *TCD) bool {
	if len(data) < TCDSize {
		return false
	}
	le := binary.LittleEndian
	out.SAddr = le.Uint32(data[0:])
	out.SOff = int16(le.Uint16(data[4:]))
	out.Attr = le.Uint16(data[6:])
	out.NBytes = le.Uint32(data[8:])
	out.SLast = int32(le.Uint32(data[12:]))
	out.DAddr = le.Uint32(data[16:])
	out.DOff = int16(le.Uint16(data[20:]))
	out.CIter = le.Uint16(data[22:])
	out.DLastSGA = le.Uint32(data[24:])
	out.CSR = le.Uint16(data[28:])
	out.BIter = le.Uint16(data[30:])
	return true
}

// MarshalTo writes the descriptor's memory image to buf.
// Returns the number of bytes written (32), or 0 if buf is too small.
func (t *TCD) MarshalTo(buf []byte) int {
	if len(buf) < TCDSize {
		return 0
	}
	le := binary.LittleEndian
	le.PutUint32(buf[0:], t.SAddr)
	le.PutUint16(buf[4:], uint16(t.SOff))
	le.PutUint16(buf[6:], t.Attr)
	le.PutUint32(buf[8:], t.NBytes)
	le.PutUint32(buf[12:], uint32(t.SLast))
	le.PutUint32(buf[16:], t.DAddr)
	le.PutUint16(buf[20:], uint16(t.DOff))
	le.PutUint16(buf[22:], t.CIter)
	le.PutUint32(buf[24:], t.DLastSGA)
	le.PutUint16(buf[28:], t.CSR)
	le.PutUint16(buf[30:], t.BIter)
	return TCDSize
}
