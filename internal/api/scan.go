package api

import (
	core "SpectraGuard/internal/core/model"
	"SpectraGuard/internal/engine/manager"
	"SpectraGuard/pkg/pcap"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

const (
	uploadField = "file"
	// previewPackets is how many leading packets the analyze response lists.
	previewPackets = 10
)

type fileScanResponse struct {
	ReportID string           `json:"report_id"`
	Filename string           `json:"filename"`
	SHA256   string           `json:"sha256"`
	Label    core.Label       `json:"label"`
	Score    float64          `json:"score"`
	Report   *core.ScanReport `json:"report"`
}

type captureFile struct {
	Name      string `json:"name"`
	SizeBytes int    `json:"size_bytes"`
}

type packetDetail struct {
	RelativeTime float64 `json:"relative_time"`
	Source       string  `json:"source"`
	Destination  string  `json:"destination"`
	Protocol     string  `json:"protocol"`
	SizeBytes    int     `json:"size_bytes"`
}

type captureResponse struct {
	ReportID      string                    `json:"report_id"`
	File          captureFile               `json:"file"`
	Summary       core.TrafficSummary       `json:"summary"`
	Detections    map[string][]core.Finding `json:"detections"`
	PacketDetails []packetDetail            `json:"packet_details"`
	Report        *core.ScanReport          `json:"report"`
}

// packetPreview lists the first n packets of a capture with times relative
// to the first one, rounded to the millisecond.
func packetPreview(data []byte, n int) []packetDetail {
	out := []packetDetail{}
	reader, err := pcap.NewBytesReader(data)
	if err != nil {
		return out
	}
	var start time.Time
	for p := range reader.Packets() {
		d := packetDetail{
			Source:      "N/A",
			Destination: "N/A",
			Protocol:    "Other",
			SizeBytes:   p.Length,
		}
		// Malformed trailing records carry no timestamp.
		if !p.Timestamp.IsZero() {
			if start.IsZero() {
				start = p.Timestamp
			}
			d.RelativeTime = math.Round(p.Timestamp.Sub(start).Seconds()*1000) / 1000
		}
		if p.IsIP() {
			d.Source = p.SrcAddr.String()
			d.Destination = p.DstAddr.String()
			d.Protocol = core.ProtocolName(p.Protocol)
		}
		out = append(out, d)
		if len(out) == n {
			break
		}
	}
	return out
}

// readUpload returns the multipart file under uploadField.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("multipart field %q is required: %w", uploadField, core.ErrInvalidInput)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return header.Filename, data, nil
}

// scanFileHandler scores an uploaded file.
func (s *Server) scanFileHandler(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.scanner.Submit(r.Context(), manager.Job{Kind: core.KindFile, Data: data, Filename: name})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fileScanResponse{
		ReportID: report.ID,
		Filename: name,
		SHA256:   report.InputIdentity,
		Label:    report.File.Label,
		Score:    report.File.Score,
		Report:   report,
	})
}

func captureExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pcap", ".pcapng":
		return true
	}
	return false
}

// analyzeCaptureHandler summarizes an uploaded pcap or pcapng capture.
func (s *Server) analyzeCaptureHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.CaptureEnabled {
		writeDetail(w, http.StatusServiceUnavailable, "capture analysis is disabled on this server")
		return
	}
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !captureExtension(name) {
		writeDetail(w, http.StatusBadRequest, "invalid file type, upload a .pcap or .pcapng file")
		return
	}
	report, err := s.scanner.Submit(r.Context(), manager.Job{Kind: core.KindTraffic, Data: data, Filename: name})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, captureResponse{
		ReportID:      report.ID,
		File:          captureFile{Name: name, SizeBytes: len(data)},
		Summary:       report.Traffic.Summary,
		Detections:    map[string][]core.Finding{string(core.FindingSynFlood): report.Traffic.Findings},
		PacketDetails: packetPreview(data, previewPackets),
		Report:        report,
	})
}

func (s *Server) captureHealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":               s.cfg.CaptureEnabled,
		"module":           "pcap",
		"analyze_endpoint": "/pcap/analyze",
		"timestamp":        s.now().UTC().Format(time.RFC3339),
	})
}
