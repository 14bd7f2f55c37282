// Package storage provides the paged durable storage layer for the Raft log.
package storage

import (
	"encoding/binary"
	"fmt"
)

// PageSize is the size of a durable page in bytes.
const PageSize = 512

// Page markers stored in byte 0 of every page.
const (
	// MarkerOverflow marks a continuation page holding command bytes.
	MarkerOverflow byte = 0
	// MarkerStart marks the first page of a log entry.
	MarkerStart byte = 1
)

// Page field offsets.
// Layout of a start page:
//   - Byte 0:        Marker (MarkerStart)
//   - Bytes 1-4:     Checksum (CRC32C, uint32)
//   - Bytes 5-12:    Term (uint64)
//   - Bytes 13-20:   Index (uint64)
//   - Bytes 21-36:   Reserved (zero)
//   - Bytes 37-44:   ClientID (uint64)
//   - Bytes 45-52:   CommandLen (uint64)
//   - Bytes 53-511:  First 459 bytes of the command
//
// Layout of an overflow page:
//   - Byte 0:        Marker (MarkerOverflow)
//   - Bytes 1-511:   Next 511 bytes of the command
const (
	offMarker     = 0
	offChecksum   = 1
	offTerm       = 5
	offIndex      = 13
	offReserved   = 21
	offClientID   = 37
	offCommandLen = 45
	offFirstData  = 53
	offOverflow   = 1

	// HeaderStart and HeaderEnd bound the checksummed header of a start page.
	HeaderStart = offTerm
	HeaderEnd   = offFirstData

	// FirstPagePayload is the number of command bytes carried by a start page.
	FirstPagePayload = PageSize - offFirstData
	// OverflowPagePayload is the number of command bytes carried by an overflow page.
	OverflowPagePayload = PageSize - offOverflow
)

func init() {
	fields := []struct {
		name  string
		start int
		end   int
	}{
		{"marker", offMarker, offChecksum},
		{"checksum", offChecksum, offTerm},
		{"term", offTerm, offIndex},
		{"index", offIndex, offReserved},
		{"reserved", offReserved, offClientID},
		{"clientID", offClientID, offCommandLen},
		{"commandLen", offCommandLen, offFirstData},
		{"payload", offFirstData, PageSize},
	}
	prev := 0
	for _, f := range fields {
		if f.start != prev || f.end <= f.start || f.end > PageSize {
			panic(fmt.Sprintf("storage: page field %s [%d..%d) does not fit a %d byte page", f.name, f.start, f.end, PageSize))
		}
		prev = f.end
	}
	if prev != PageSize {
		panic("storage: page layout does not cover the page")
	}
}

// Page is one fixed-size durable unit.
type Page [PageSize]byte

// Marker returns the page marker byte.
func (p *Page) Marker() byte { return p[offMarker] }

// SetMarker sets the page marker byte.
func (p *Page) SetMarker(m byte) { p[offMarker] = m }

// Checksum returns the stored checksum of a start page.
func (p *Page) Checksum() uint32 {
	return binary.LittleEndian.Uint32(p[offChecksum:offTerm])
}

// SetChecksum stores the checksum of a start page.
func (p *Page) SetChecksum(sum uint32) {
	binary.LittleEndian.PutUint32(p[offChecksum:offTerm], sum)
}

// Term returns the entry term of a start page.
func (p *Page) Term() uint64 {
	return binary.LittleEndian.Uint64(p[offTerm:offIndex])
}

// SetTerm sets the entry term of a start page.
func (p *Page) SetTerm(term uint64) {
	binary.LittleEndian.PutUint64(p[offTerm:offIndex], term)
}

// Index returns the entry index of a start page.
func (p *Page) Index() uint64 {
	return binary.LittleEndian.Uint64(p[offIndex:offReserved])
}

// SetIndex sets the entry index of a start page.
func (p *Page) SetIndex(index uint64) {
	binary.LittleEndian.PutUint64(p[offIndex:offReserved], index)
}

// ClientID returns the originating client of a start page.
func (p *Page) ClientID() uint64 {
	return binary.LittleEndian.Uint64(p[offClientID:offCommandLen])
}

// SetClientID sets the originating client of a start page.
func (p *Page) SetClientID(id uint64) {
	binary.LittleEndian.PutUint64(p[offClientID:offCommandLen], id)
}

// CommandLen returns the declared command length of a start page.
func (p *Page) CommandLen() uint64 {
	return binary.LittleEndian.Uint64(p[offCommandLen:offFirstData])
}

// SetCommandLen sets the declared command length of a start page.
func (p *Page) SetCommandLen(n uint64) {
	binary.LittleEndian.PutUint64(p[offCommandLen:offFirstData], n)
}

// Header returns the checksummed header bytes of a start page.
func (p *Page) Header() []byte {
	return p[HeaderStart:HeaderEnd]
}

// Payload returns the command bytes area of the page, which depends on
// whether the page starts an entry or continues one.
func (p *Page) Payload() []byte {
	if p[offMarker] == MarkerStart {
		return p[offFirstData:]
	}
	return p[offOverflow:]
}

// IsZero reports whether every byte of the page is zero.
func (p *Page) IsZero() bool {
	for _, b := range p {
		if b != 0 {
			return false
		}
	}
	return true
}

// Reset zeroes the page.
func (p *Page) Reset() {
	*p = Page{}
}

// PageOffset returns the byte offset of page number n.
func PageOffset(n int64) int64 {
	return n * PageSize
}

// PagesFor returns how many pages a command of n bytes occupies.
func PagesFor(n uint64) int {
	if n <= FirstPagePayload {
		return 1
	}
	rest := n - FirstPagePayload
	return 1 + int((rest+OverflowPagePayload-1)/OverflowPagePayload)
}
