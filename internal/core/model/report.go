package model

import (
	"fmt"
	"time"
)

// Kind tells which verdict a ScanReport carries.
type Kind string

const (
	KindFile    Kind = "file"
	KindTraffic Kind = "traffic"
)

// Label is the categorical outcome of a file scan.
type Label string

const (
	LabelBenign     Label = "benign"
	LabelSuspicious Label = "suspicious"
	LabelMalicious  Label = "malicious"
)

// Rank orders labels by severity; unknown labels rank below benign.
func (l Label) Rank() int {
	switch l {
	case LabelBenign:
		return 1
	case LabelSuspicious:
		return 2
	case LabelMalicious:
		return 3
	}
	return 0
}

// HeaderSignature tags the file format recognised from the leading bytes.
type HeaderSignature string

const (
	SigUnknown   HeaderSignature = "unknown"
	SigPE        HeaderSignature = "PE"
	SigELF       HeaderSignature = "ELF"
	SigMachO     HeaderSignature = "MACHO"
	SigMachOFat  HeaderSignature = "MACHO_FAT"
	SigJavaClass HeaderSignature = "JAVA_CLASS"
	SigZIP       HeaderSignature = "ZIP"
	SigGZIP      HeaderSignature = "GZIP"
	Sig7Z        HeaderSignature = "7Z"
	SigRAR       HeaderSignature = "RAR"
	SigPDF       HeaderSignature = "PDF"
	SigPNG       HeaderSignature = "PNG"
	SigJPEG      HeaderSignature = "JPEG"
	SigGIF       HeaderSignature = "GIF"
	SigBMP       HeaderSignature = "BMP"
	SigRIFF      HeaderSignature = "RIFF"
	SigOLE2      HeaderSignature = "OLE2"
	SigScript    HeaderSignature = "SCRIPT"
)

// StringEncoding is the guessed encoding of a printable run.
type StringEncoding string

const (
	EncodingASCII   StringEncoding = "ascii"
	EncodingUTF16LE StringEncoding = "utf-16le"
)

// PrintableString is one maximal printable run found in a buffer.
type PrintableString struct {
	Offset   int            `json:"offset"`
	Value    string         `json:"value"`
	Encoding StringEncoding `json:"encoding"`
}

// FeatureSet is the statistical profile of one byte buffer.
type FeatureSet struct {
	Size    int     `json:"size"`
	Entropy float64 `json:"entropy"`

	// Strings holds at most the extractor's configured cap; StringCount is the
	// number of runs found in total.
	Strings     []PrintableString `json:"strings"`
	StringCount int               `json:"string_count"`
	// Matches lists the extractor's needles found in any run, in discovery order.
	Matches []string `json:"matches,omitempty"`

	Header HeaderSignature `json:"header"`
	// DeclaredSize is the size encoded by the header, or -1 when the format has none.
	DeclaredSize int64 `json:"declared_size"`
	SizeMismatch bool  `json:"size_mismatch"`
}

// Signal is one weighted input to a file verdict. Contribution is the amount
// the signal added to the final score.
type Signal struct {
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	SubScore     float64 `json:"sub_score"`
	Contribution float64 `json:"contribution"`
	Observed     string  `json:"observed"`
}

// FileVerdict is the scored outcome of a file scan.
type FileVerdict struct {
	Score     float64         `json:"score"`
	Label     Label           `json:"label"`
	Threshold float64         `json:"threshold"`
	Signals   []Signal        `json:"contributing_signals"`
	Header    HeaderSignature `json:"header"`
	Size      int             `json:"size"`
}

// FindingKind names a traffic detection.
type FindingKind string

const (
	FindingNone     FindingKind = "none"
	FindingSynFlood FindingKind = "syn_flood"
)

// SynEvidence carries the counters behind a syn_flood finding.
type SynEvidence struct {
	SynCount             uint64    `json:"syn_count"`
	SynAckCount          uint64    `json:"syn_ack_count"`
	DistinctDestinations int       `json:"distinct_destination_count"`
	AckRatio             float64   `json:"ack_ratio"`
	WindowStart          time.Time `json:"window_start"`
	WindowEnd            time.Time `json:"window_end"`
}

// Finding is one traffic detection naming a source address.
type Finding struct {
	Kind     FindingKind `json:"kind"`
	Source   string      `json:"source"`
	Severity string      `json:"severity"`
	Evidence SynEvidence `json:"evidence"`
}

// Talker is one address ranked in the capture summary.
type Talker struct {
	Address string `json:"address"`
	Packets uint64 `json:"packets"`
	Bytes   uint64 `json:"bytes"`
	Country string `json:"country,omitempty"`
}

// TrafficSummary holds capture-wide statistics.
type TrafficSummary struct {
	PacketCount     uint64            `json:"packet_count"`
	ByteCount       uint64            `json:"byte_count"`
	FlowCount       int               `json:"flow_count"`
	UniqueAddresses int               `json:"unique_addresses"`
	FirstSeen       time.Time         `json:"first_seen"`
	LastSeen        time.Time         `json:"last_seen"`
	Duration        time.Duration     `json:"duration_ns"`
	ProtocolStats   map[string]uint64 `json:"protocol_stats"`
	TopTalkers      []Talker          `json:"top_talkers"`
	MalformedCount  uint64            `json:"malformed_count"`
	NonIPCount      uint64            `json:"non_ip_count"`
	Truncated       bool              `json:"truncated"`
}

// TrafficVerdict is the outcome of a capture scan.
type TrafficVerdict struct {
	Summary  TrafficSummary `json:"summary"`
	Findings []Finding      `json:"findings"`
}

// ScanReport is the envelope handed to every collaborator outside the core.
type ScanReport struct {
	ID            string          `json:"id"`
	Kind          Kind            `json:"kind"`
	File          *FileVerdict    `json:"file,omitempty"`
	Traffic       *TrafficVerdict `json:"traffic,omitempty"`
	GeneratedAt   time.Time       `json:"generated_at"`
	InputIdentity string          `json:"input_identity"`
}

// Headline is a one-line human summary of the report.
func (r *ScanReport) Headline() string {
	switch r.Kind {
	case KindFile:
		if r.File != nil {
			return fmt.Sprintf("file %s: %s (score %.2f, header %s)", short(r.InputIdentity), r.File.Label, r.File.Score, r.File.Header)
		}
	case KindTraffic:
		if r.Traffic != nil {
			s := r.Traffic.Summary
			return fmt.Sprintf("capture %s: %d packets, %d flows, %d finding(s)", short(r.InputIdentity), s.PacketCount, s.FlowCount, len(r.Traffic.Findings))
		}
	}
	return fmt.Sprintf("%s report %s", r.Kind, r.ID)
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
