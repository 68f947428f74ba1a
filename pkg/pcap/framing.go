package pcap

import "encoding/binary"

const (
	pcapHeaderLen = 24
	pcapRecordLen = 16

	ngBlockIDB  = 0x00000001
	ngBlockPB   = 0x00000002
	ngBlockSPB  = 0x00000003
	ngBlockEPB  = 0x00000006
	ngByteMagic = 0x1A2B3C4D
)

// framedLength returns the length of the longest prefix of data made of
// whole records whose lengths fit inside data. Bytes past it belong to a
// truncated or lying record. Unknown headers return len(data) so the
// container reader reports them.
func framedLength(data []byte) int {
	if len(data) < 4 {
		return len(data)
	}
	if binary.LittleEndian.Uint32(data) == ngMagic {
		return framedNG(data)
	}
	return framedPcap(data)
}

func framedPcap(data []byte) int {
	if len(data) < pcapHeaderLen {
		return len(data)
	}
	var order binary.ByteOrder
	switch binary.LittleEndian.Uint32(data) {
	case 0xa1b2c3d4, 0xa1b23c4d:
		order = binary.LittleEndian
	case 0xd4c3b2a1, 0x4d3cb2a1:
		order = binary.BigEndian
	default:
		return len(data)
	}

	off := pcapHeaderLen
	for len(data)-off >= pcapRecordLen {
		caplen := uint64(order.Uint32(data[off+8:]))
		if caplen > uint64(len(data)-off-pcapRecordLen) {
			break
		}
		off += pcapRecordLen + int(caplen)
	}
	return off
}

func framedNG(data []byte) int {
	var order binary.ByteOrder = binary.LittleEndian
	var snaplen uint32
	interfaces := 0

	off := 0
	for len(data)-off >= 12 {
		block := data[off:]
		if binary.LittleEndian.Uint32(block) == ngMagic {
			switch binary.LittleEndian.Uint32(block[8:]) {
			case ngByteMagic:
				order = binary.LittleEndian
			case 0x4D3C2B1A:
				order = binary.BigEndian
			default:
				return off
			}
			snaplen, interfaces = 0, 0
		}

		total := uint64(order.Uint32(block[4:]))
		if total < 12 || total%4 != 0 || total > uint64(len(block)) {
			break
		}

		switch order.Uint32(block) {
		case ngBlockIDB:
			if total < 20 {
				return off
			}
			if interfaces == 0 {
				snaplen = order.Uint32(block[12:])
			}
			interfaces++
		case ngBlockEPB, ngBlockPB:
			if total < 32 || uint64(order.Uint32(block[20:])) > total-32 {
				return off
			}
		case ngBlockSPB:
			if total < 16 {
				return off
			}
			caplen := order.Uint32(block[8:])
			if snaplen != 0 && caplen > snaplen {
				caplen = snaplen
			}
			if uint64(caplen) > total-16 {
				return off
			}
		}
		off += int(total)
	}
	return off
}
