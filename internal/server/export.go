package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/payment-receipts/constants"
	"github.com/joseph-ayodele/payment-receipts/internal/common"
	"github.com/joseph-ayodele/payment-receipts/internal/receipts"
	"github.com/joseph-ayodele/payment-receipts/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Exporter renders receipts as an XLSX workbook.
type Exporter interface {
	ExportReceiptsXLSX(ctx context.Context, status *constants.VerificationStatus, from, to *time.Time) ([]byte, error)
}

type ExportHandler struct {
	svc    Exporter
	logger *slog.Logger
}

func NewExportHandler(svc Exporter, logger *slog.Logger) *ExportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportHandler{svc: svc, logger: logger}
}

// ExportReceipts handles GET /admin/receipts/export?status=&from=&to= with YYYY-MM-DD dates.
func (h *ExportHandler) ExportReceipts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := receipts.StatusFilter(q.Get("status"))
	if err != nil {
		WriteAppError(w, r, h.logger, err)
		return
	}

	var fromPtr, toPtr *time.Time
	if fd := strings.TrimSpace(q.Get("from")); fd != "" {
		t, err := utils.ParseYMD(fd)
		if err != nil {
			WriteAppError(w, r, h.logger, common.InvalidInputf("from must be YYYY-MM-DD"))
			return
		}
		fromPtr = &t
	}
	if td := strings.TrimSpace(q.Get("to")); td != "" {
		t, err := utils.ParseYMD(td)
		if err != nil {
			WriteAppError(w, r, h.logger, common.InvalidInputf("to must be YYYY-MM-DD"))
			return
		}
		toPtr = &t
	}
	if fromPtr != nil && toPtr != nil && toPtr.Before(*fromPtr) {
		WriteAppError(w, r, h.logger, common.InvalidInputf("to must not be before from"))
		return
	}

	xlsx, err := h.svc.ExportReceiptsXLSX(r.Context(), filter.Status, fromPtr, toPtr)
	if err != nil {
		h.logger.Error("export.xlsx.failed", "error", err)
		WriteAppError(w, r, h.logger, err)
		return
	}

	name := "payment-receipts-" + time.Now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}
