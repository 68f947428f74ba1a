// Package pcap reads classic pcap and pcapng captures without libpcap.
package pcap

import (
	"SpectraGuard/internal/core/model"
	"SpectraGuard/internal/engine/protocol"
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"iter"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Format names a capture container.
type Format string

const (
	FormatAuto   Format = ""
	FormatPcap   Format = "pcap"
	FormatPcapNG Format = "pcapng"
)

// pcapng files open with a Section Header Block.
const ngMagic = 0x0A0D0D0A

// maxSnaplen bounds the per-record buffer of a classic pcap stream whatever
// its header declares.
const maxSnaplen = 262144

type packetSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
}

// Reader streams decoded packets out of a capture.
type Reader struct {
	src    packetSource
	link   layers.LinkType
	format Format
	// trailing counts input bytes past the last whole record.
	trailing int
}

// NewReader validates the capture header of r. FormatAuto sniffs the magic
// number. Use NewBytesReader for untrusted captures.
func NewReader(r io.Reader, format Format) (*Reader, error) {
	br := bufio.NewReader(r)
	if format == FormatAuto {
		magic, err := br.Peek(4)
		if err != nil {
			return nil, fmt.Errorf("%w: capture header: %v", model.ErrInvalidInput, err)
		}
		format = FormatPcap
		if binary.LittleEndian.Uint32(magic) == ngMagic {
			format = FormatPcapNG
		}
	}

	reader := &Reader{format: format}
	switch format {
	case FormatPcapNG:
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("%w: pcapng header: %v", model.ErrInvalidInput, err)
		}
		reader.src, reader.link = ng, ng.LinkType()
	case FormatPcap:
		pr, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: pcap header: %v", model.ErrInvalidInput, err)
		}
		if pr.Snaplen() > maxSnaplen {
			pr.SetSnaplen(maxSnaplen)
		}
		reader.src, reader.link = pr, pr.LinkType()
	default:
		return nil, fmt.Errorf("%w: unknown capture format %q", model.ErrInvalidInput, format)
	}
	return reader, nil
}

// NewBytesReader is NewReader over an in-memory capture. Record lengths are
// checked against the bytes actually present before any record is read.
func NewBytesReader(data []byte) (*Reader, error) {
	end := framedLength(data)
	reader, err := NewReader(bytes.NewReader(data[:end]), FormatAuto)
	if err != nil {
		return nil, err
	}
	reader.trailing = len(data) - end
	return reader, nil
}

// LinkType returns the link type declared by the capture header.
func (r *Reader) LinkType() layers.LinkType {
	return r.link
}

// Format returns the detected container format.
func (r *Reader) Format() Format {
	return r.format
}

// Packets yields every record in file order. Decode failures are carried on
// the packet itself. A truncated trailing record is yielded once as a
// malformed packet and ends the sequence.
func (r *Reader) Packets() iter.Seq[model.Packet] {
	return func(yield func(model.Packet) bool) {
		for {
			data, ci, err := r.src.ReadPacketData()
			// A record header followed by nothing also ends in io.EOF.
			if err == io.EOF && ci.Timestamp.IsZero() {
				if r.trailing > 0 {
					yield(model.Packet{Malformed: true, Length: r.trailing})
				}
				return
			}
			if err != nil {
				yield(model.Packet{Malformed: true, Length: len(data)})
				return
			}
			pkt, _ := protocol.Decode(data, r.link, ci)
			if !yield(pkt) {
				return
			}
		}
	}
}
