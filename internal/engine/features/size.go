package features

import (
	"SpectraGuard/internal/core/model"
	"bytes"
	"debug/pe"
	"encoding/binary"
)

// noDeclaredSize marks formats whose header carries no size field.
const noDeclaredSize int64 = -1

// peSecurityDirectory is the data-directory slot whose address is a file offset.
const peSecurityDirectory = 4

// declaredSize returns the size the header of a tag-formatted buffer claims.
// ok is false when the header matched but could not be parsed.
func declaredSize(tag model.HeaderSignature, buf []byte) (size int64, ok bool) {
	switch tag {
	case model.SigBMP:
		if len(buf) < 6 {
			return noDeclaredSize, false
		}
		return int64(binary.LittleEndian.Uint32(buf[2:6])), true
	case model.SigRIFF:
		if len(buf) < 8 {
			return noDeclaredSize, false
		}
		return int64(binary.LittleEndian.Uint32(buf[4:8])) + 8, true
	case model.SigELF:
		return elfDeclaredSize(buf)
	case model.SigPE:
		return peDeclaredSize(buf)
	}
	return noDeclaredSize, true
}

// elfDeclaredSize treats the end of the section header table as the file end,
// which is where static linkers place it.
func elfDeclaredSize(buf []byte) (int64, bool) {
	if len(buf) < 6 {
		return noDeclaredSize, false
	}
	var order binary.ByteOrder
	switch buf[5] {
	case 1:
		order = binary.LittleEndian
	case 2:
		order = binary.BigEndian
	default:
		return noDeclaredSize, false
	}

	var shoff uint64
	var shentsize, shnum uint16
	switch buf[4] {
	case 1:
		if len(buf) < 0x34 {
			return noDeclaredSize, false
		}
		shoff = uint64(order.Uint32(buf[0x20:]))
		shentsize = order.Uint16(buf[0x2e:])
		shnum = order.Uint16(buf[0x30:])
	case 2:
		if len(buf) < 0x40 {
			return noDeclaredSize, false
		}
		shoff = order.Uint64(buf[0x28:])
		shentsize = order.Uint16(buf[0x3a:])
		shnum = order.Uint16(buf[0x3c:])
	default:
		return noDeclaredSize, false
	}

	if shoff == 0 {
		return noDeclaredSize, true
	}
	end := shoff + uint64(shentsize)*uint64(shnum)
	if end < shoff || end > 1<<62 {
		return noDeclaredSize, false
	}
	return int64(end), true
}

// peDeclaredSize takes the furthest raw-data end over all sections and the
// Authenticode certificate table.
func peDeclaredSize(buf []byte) (int64, bool) {
	f, err := pe.NewFile(bytes.NewReader(buf))
	if err != nil {
		return noDeclaredSize, false
	}
	defer f.Close()

	var end uint64
	for _, s := range f.Sections {
		if s.Size == 0 {
			continue
		}
		if e := uint64(s.Offset) + uint64(s.Size); e > end {
			end = e
		}
	}

	var dir pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if oh.NumberOfRvaAndSizes > peSecurityDirectory {
			dir = oh.DataDirectory[peSecurityDirectory]
		}
	case *pe.OptionalHeader64:
		if oh.NumberOfRvaAndSizes > peSecurityDirectory {
			dir = oh.DataDirectory[peSecurityDirectory]
		}
	}
	if dir.Size > 0 {
		if e := uint64(dir.VirtualAddress) + uint64(dir.Size); e > end {
			end = e
		}
	}

	if end == 0 {
		return noDeclaredSize, true
	}
	return int64(end), true
}
