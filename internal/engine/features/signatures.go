package features

import (
	"SpectraGuard/internal/core/model"
	"bytes"
)

// Signature maps a magic-number prefix to a format tag.
type Signature struct {
	Tag   model.HeaderSignature
	Magic []byte
}

// DefaultSignatures is the built-in magic table. Order matters: when two
// entries match with the same prefix length, the earlier one wins.
// Fat Mach-O and Java class files share 0xCAFEBABE; executables are listed first.
var DefaultSignatures = []Signature{
	{model.SigELF, []byte("\x7fELF")},
	{model.SigPE, []byte("MZ")},
	{model.SigMachO, []byte{0xfe, 0xed, 0xfa, 0xce}},
	{model.SigMachO, []byte{0xfe, 0xed, 0xfa, 0xcf}},
	{model.SigMachO, []byte{0xce, 0xfa, 0xed, 0xfe}},
	{model.SigMachO, []byte{0xcf, 0xfa, 0xed, 0xfe}},
	{model.SigMachOFat, []byte{0xca, 0xfe, 0xba, 0xbe}},
	{model.SigJavaClass, []byte{0xca, 0xfe, 0xba, 0xbe}},
	{model.SigZIP, []byte("PK\x03\x04")},
	{model.SigZIP, []byte("PK\x05\x06")},
	{model.SigZIP, []byte("PK\x07\x08")},
	{model.SigGZIP, []byte{0x1f, 0x8b}},
	{model.Sig7Z, []byte{'7', 'z', 0xbc, 0xaf, 0x27, 0x1c}},
	{model.SigRAR, []byte("Rar!\x1a\x07")},
	{model.SigPDF, []byte("%PDF-")},
	{model.SigPNG, []byte("\x89PNG\r\n\x1a\n")},
	{model.SigJPEG, []byte{0xff, 0xd8, 0xff}},
	{model.SigGIF, []byte("GIF87a")},
	{model.SigGIF, []byte("GIF89a")},
	{model.SigBMP, []byte("BM")},
	{model.SigRIFF, []byte("RIFF")},
	{model.SigOLE2, []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}},
	{model.SigScript, []byte("#!")},
}

// matchHeader returns the tag of the longest magic prefix of buf. Ties go to
// the first entry in table order.
func matchHeader(buf []byte, table []Signature) model.HeaderSignature {
	best := model.SigUnknown
	bestLen := 0
	for _, sig := range table {
		if len(sig.Magic) > bestLen && bytes.HasPrefix(buf, sig.Magic) {
			best = sig.Tag
			bestLen = len(sig.Magic)
		}
	}
	return best
}
