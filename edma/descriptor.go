package edma

import (
	"fmt"

	"github.com/ardnew/softdma/edma/hal"
	"github.com/ardnew/softdma/pkg"
)

// TransferConfig describes one transfer segment. It is copied into a
// descriptor by Apply; the driver never reads it after Submit returns.
type TransferConfig struct {
	SrcAddr  uint32           // Source address
	DestAddr uint32           // Destination address
	SrcSize  hal.TransferSize // Source access width
	DestSize hal.TransferSize // Destination access width

	SrcOffset  int16 // Signed source increment per access
	DestOffset int16 // Signed destination increment per access

	SrcModulo  Modulo // Source circular buffer size, 0 disables
	DestModulo Modulo // Destination circular buffer size, 0 disables

	MinorLoopBytes uint32 // Bytes moved per service request
	MajorLoopCount uint16 // Service requests in the transfer

	SrcLastAdjust  int32 // Applied to the source address at completion
	DestLastAdjust int32 // Applied to the destination address at completion

	Link        LinkKind // Channel link
	LinkChannel uint8    // Channel started by the link
}

// PrepareTransfer builds a TransferConfig for transferBytes moved in
// requests of bytesEachRequest. Widths are in bytes (1, 2, 4, 8, 16, 32).
func PrepareTransfer(src, dst, srcWidth, dstWidth, bytesEachRequest, transferBytes uint32, kind TransferKind) (TransferConfig, error) {
	var cfg TransferConfig

	ss, ok := hal.TransferSizeOf(srcWidth)
	if !ok {
		return cfg, fmt.Errorf("source width %d: %w", srcWidth, pkg.ErrInvalidParameter)
	}
	ds, ok := hal.TransferSizeOf(dstWidth)
	if !ok {
		return cfg, fmt.Errorf("destination width %d: %w", dstWidth, pkg.ErrInvalidParameter)
	}
	if src%srcWidth != 0 {
		return cfg, fmt.Errorf("source %#x not aligned to %d: %w", src, srcWidth, pkg.ErrInvalidParameter)
	}
	if dst%dstWidth != 0 {
		return cfg, fmt.Errorf("destination %#x not aligned to %d: %w", dst, dstWidth, pkg.ErrInvalidParameter)
	}
	if bytesEachRequest == 0 || bytesEachRequest%srcWidth != 0 || bytesEachRequest%dstWidth != 0 {
		return cfg, fmt.Errorf("request size %d: %w", bytesEachRequest, pkg.ErrInvalidParameter)
	}
	if transferBytes == 0 || transferBytes%bytesEachRequest != 0 {
		return cfg, fmt.Errorf("transfer size %d not a multiple of %d: %w",
			transferBytes, bytesEachRequest, pkg.ErrInvalidParameter)
	}
	count := transferBytes / bytesEachRequest
	if count > uint32(hal.MaxMajorCount) {
		return cfg, fmt.Errorf("major loop count %d exceeds %d: %w", count, hal.MaxMajorCount, pkg.ErrInvalidParameter)
	}

	cfg = TransferConfig{
		SrcAddr:        src,
		DestAddr:       dst,
		SrcSize:        ss,
		DestSize:       ds,
		MinorLoopBytes: bytesEachRequest,
		MajorLoopCount: uint16(count),
	}
	switch kind {
	case MemoryToMemory:
		cfg.SrcOffset, cfg.DestOffset = int16(srcWidth), int16(dstWidth)
	case PeripheralToMemory:
		cfg.DestOffset = int16(dstWidth)
	case MemoryToPeripheral:
		cfg.SrcOffset = int16(srcWidth)
	case PeripheralToPeripheral:
	default:
		return TransferConfig{}, fmt.Errorf("transfer kind %v: %w", kind, pkg.ErrInvalidParameter)
	}
	return cfg, nil
}

// Validate checks the fields PrepareTransfer does not own. A minor link
// narrows the major loop counter, so a linked count must fit in
// hal.MaxLinkedMajorCount.
func (c *TransferConfig) Validate() error {
	limit := hal.MaxMajorCount
	switch c.Link {
	case LinkNone:
	case LinkMinor:
		limit = hal.MaxLinkedMajorCount
		fallthrough
	case LinkMajor:
		if int(c.LinkChannel) >= hal.MaxChannels {
			return fmt.Errorf("link channel %d: %w", c.LinkChannel, pkg.ErrInvalidParameter)
		}
	default:
		return fmt.Errorf("link kind %v: %w", c.Link, pkg.ErrInvalidParameter)
	}
	if c.MajorLoopCount == 0 || int(c.MajorLoopCount) > limit {
		return fmt.Errorf("major loop count %d with %v: %w", c.MajorLoopCount, c.Link, pkg.ErrInvalidParameter)
	}
	return nil
}

// Apply writes the transfer into tcd. Call Validate first when the link
// fields were changed after PrepareTransfer. Fields Apply does not own (ESG,
// DREQ, interrupt enables) are left as they are.
func (c *TransferConfig) Apply(tcd *hal.TCD) {
	tcd.SAddr = c.SrcAddr
	tcd.DAddr = c.DestAddr
	tcd.SetAttr(c.SrcSize, c.DestSize, uint8(c.SrcModulo), uint8(c.DestModulo))
	tcd.SOff = c.SrcOffset
	tcd.DOff = c.DestOffset
	tcd.NBytes = c.MinorLoopBytes
	tcd.SLast = c.SrcLastAdjust
	tcd.DLastSGA = uint32(c.DestLastAdjust)

	tcd.ClearMinorLink()
	tcd.ClearMajorLink()
	switch c.Link {
	case LinkMinor:
		tcd.SetMinorLink(c.LinkChannel)
	case LinkMajor:
		tcd.SetMajorLink(c.LinkChannel)
	}
	tcd.SetMajorCount(c.MajorLoopCount)
}

// Bytes returns the total number of bytes the transfer moves.
func (c *TransferConfig) Bytes() uint64 {
	return uint64(c.MinorLoopBytes) * uint64(c.MajorLoopCount)
}
