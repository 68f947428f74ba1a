package features

import (
	"SpectraGuard/internal/core/model"
	"bytes"
)

// maxValueLen caps the bytes kept per recorded string. Offsets stay exact.
const maxValueLen = 1024

func isPrintable(b byte) bool {
	return b == '\t' || (b >= 0x20 && b < 0x7f)
}

// asciiRun returns the length of the printable ASCII run starting at i.
func asciiRun(buf []byte, i int) int {
	n := 0
	for i+n < len(buf) && isPrintable(buf[i+n]) {
		n++
	}
	return n
}

// utf16Run returns the number of UTF-16LE printable code units starting at i.
// It stops after limit units so a failed attempt costs a bounded amount of work.
func utf16Run(buf []byte, i, limit int) int {
	n := 0
	for {
		j := i + 2*n
		if j+1 >= len(buf) || !isPrintable(buf[j]) || buf[j+1] != 0 {
			return n
		}
		n++
		if limit > 0 && n >= limit {
			return n
		}
	}
}

// stringScan is the outcome of one pass over a buffer.
type stringScan struct {
	kept    []model.PrintableString
	total   int
	matches []string
}

// scanStrings walks buf once and records non-overlapping maximal printable runs
// of at least minLen characters, in ascending offset order. At most limit runs
// are kept but every run is counted and searched for needles in full.
func scanStrings(buf []byte, minLen, limit int, utf16 bool, needles []string) stringScan {
	var res stringScan
	found := make([]bool, len(needles))
	search := func(val []byte) {
		if len(res.matches) == len(needles) {
			return
		}
		lower := bytes.ToLower(val)
		for k, n := range needles {
			if !found[k] && bytes.Contains(lower, []byte(n)) {
				found[k] = true
				res.matches = append(res.matches, n)
			}
		}
	}
	record := func(off int, val []byte, enc model.StringEncoding) {
		res.total++
		search(val)
		if len(res.kept) >= limit {
			return
		}
		if len(val) > maxValueLen {
			val = val[:maxValueLen]
		}
		res.kept = append(res.kept, model.PrintableString{Offset: off, Value: string(val), Encoding: enc})
	}

	for i := 0; i < len(buf); {
		n := asciiRun(buf, i)
		if n >= minLen {
			record(i, buf[i:i+n], model.EncodingASCII)
			i += n
			continue
		}

		if utf16 && utf16Run(buf, i, minLen) >= minLen {
			m := utf16Run(buf, i, 0)
			keep := m
			if len(res.matches) == len(needles) {
				keep = min(m, maxValueLen)
			}
			val := make([]byte, keep)
			for k := range val {
				val[k] = buf[i+2*k]
			}
			record(i, val, model.EncodingUTF16LE)
			i += 2 * m
			continue
		}

		// Inside a short ASCII run only its last byte can start a UTF-16 run.
		if n > 1 {
			i += n - 1
		} else {
			i++
		}
	}
	return res
}
