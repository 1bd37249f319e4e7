// Package tamper flags receipt images whose metadata hints at editing. The signal is advisory:
// it never rejects a receipt on its own.
package tamper

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/joseph-ayodele/payment-receipts/constants"
)

// Reasons reported in an Assessment.
const (
	ReasonNoMetadata  = "image metadata missing or unreadable"
	ReasonEditor      = "edited with %s"
	ReasonNoTimestamp = "no capture timestamp in metadata"
)

// Assessment is the outcome of inspecting one image.
type Assessment struct {
	Suspicious bool     `json:"suspicious"`
	Reasons    []string `json:"reasons,omitempty"`
	Software   string   `json:"software,omitempty"`
}

// Heuristic inspects EXIF metadata.
type Heuristic struct {
	denyList []string
	logger   *slog.Logger
}

// NewHeuristic uses constants.ImageEditorDenyList when denyList is empty.
func NewHeuristic(denyList []string, logger *slog.Logger) *Heuristic {
	if len(denyList) == 0 {
		denyList = constants.ImageEditorDenyList
	}
	if logger == nil {
		logger = slog.Default()
	}
	lowered := make([]string, 0, len(denyList))
	for _, d := range denyList {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			lowered = append(lowered, d)
		}
	}
	return &Heuristic{denyList: lowered, logger: logger}
}

// Assess never fails: unreadable metadata is itself a suspicious signal.
func (h *Heuristic) Assess(img []byte) Assessment {
	x, err := decode(img)
	if err != nil {
		h.logger.Debug("tamper.exif.unreadable", "error", err, "bytes", len(img))
		return Assessment{Suspicious: true, Reasons: []string{ReasonNoMetadata}}
	}

	var a Assessment
	a.Software = tagString(x, exif.Software)
	if a.Software != "" {
		sw := strings.ToLower(a.Software)
		for _, editor := range h.denyList {
			if strings.Contains(sw, editor) {
				a.Reasons = append(a.Reasons, fmt.Sprintf(ReasonEditor, a.Software))
				break
			}
		}
	}
	if !hasAnyTag(x, exif.DateTimeOriginal, exif.DateTimeDigitized, exif.DateTime) {
		a.Reasons = append(a.Reasons, ReasonNoTimestamp)
	}
	a.Suspicious = len(a.Reasons) > 0

	if a.Suspicious {
		h.logger.Info("tamper.assess.suspicious", "software", a.Software, "reasons", a.Reasons)
	}
	return a
}

func decode(img []byte) (x *exif.Exif, err error) {
	if len(img) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	// goexif can panic on truncated IFDs.
	defer func() {
		if r := recover(); r != nil {
			x, err = nil, fmt.Errorf("exif decode panic: %v", r)
		}
	}()
	x, err = exif.Decode(bytes.NewReader(img))
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return nil, err
	}
	return x, nil
}

func tagString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

func hasAnyTag(x *exif.Exif, names ...exif.FieldName) bool {
	for _, n := range names {
		if tagString(x, n) != "" {
			return true
		}
	}
	return false
}
