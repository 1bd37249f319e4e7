package export

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/payment-receipts/constants"
	"github.com/joseph-ayodele/payment-receipts/internal/entity"
	"github.com/joseph-ayodele/payment-receipts/internal/repository"
	"github.com/joseph-ayodele/payment-receipts/internal/utils"
)

// SheetName is the worksheet holding the audit rows.
const SheetName = "Receipts"

const pageSize = 500

// Service is a tiny façade over the receipt repository that produces XLSX bytes for audits.
type Service struct {
	receipts repository.ReceiptRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(receipts repository.ReceiptRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{receipts: receipts, logger: logger, now: time.Now}
}

// Headers are the audit columns in order.
var Headers = []string{
	"Uploaded At",
	"Receipt ID",
	"Order ID",
	"Customer ID",
	"Seller ID",
	"Status",
	"Reference Number",
	"Amount",
	"Receiver Number",
	"Amount Match",
	"Receiver Match",
	"Reference Valid",
	"Duplicate",
	"Tamper Suspected",
	"Rejection Reason",
	"Review Decision",
	"Reviewed At",
	"Image URL",
}

// ExportReceiptsXLSX returns an XLSX workbook (as bytes) of receipts uploaded in the date window.
// Both dates are inclusive and compared in UTC.
// If only from is provided -> from..today.
// If only to is provided   -> beginning..to.
// If neither is provided   -> every receipt.
func (s *Service) ExportReceiptsXLSX(ctx context.Context, status *constants.VerificationStatus, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	filter := repository.ReceiptFilter{Status: status}
	if from != nil {
		f := utils.DateOnly(*from)
		filter.From = &f
		if to == nil {
			today := utils.DateOnly(s.now())
			to = &today
		}
	}
	if to != nil {
		// the repository window is half-open
		end := utils.DateOnly(*to).AddDate(0, 0, 1)
		filter.To = &end
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}
	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	row := 2
	filter.Limit = pageSize
	for {
		recs, _, err := s.receipts.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("query receipts: %w", err)
		}
		for _, r := range recs {
			// SetSheetRow only accepts a pointer to a slice
			vals := rowValues(r)
			if err := f.SetSheetRow(SheetName, "A"+strconv.Itoa(row), &vals); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
			row++
		}
		if len(recs) < pageSize {
			break
		}
		filter.Offset += pageSize
	}

	// Widen a few columns
	_ = f.SetColWidth(SheetName, "A", "A", 20) // uploaded
	_ = f.SetColWidth(SheetName, "B", "E", 38) // ids
	_ = f.SetColWidth(SheetName, "G", "I", 18)
	_ = f.SetColWidth(SheetName, "O", "O", 60) // reason
	_ = f.SetColWidth(SheetName, "R", "R", 60) // url
	_ = f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", row-2,
		"status", status,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func rowValues(r *entity.PaymentReceipt) []any {
	var decision, reviewedAt string
	if r.Review != nil {
		decision = string(r.Review.Decision)
		reviewedAt = r.Review.ReviewedAt.UTC().Format(time.RFC3339)
	}
	return []any{
		r.UploadedAt.UTC().Format(time.RFC3339),
		r.ID.String(),
		r.OrderID.String(),
		r.CustomerID.String(),
		r.SellerID.String(),
		string(r.Status),
		utils.StrOrEmpty(r.Extracted.ReferenceNumber),
		utils.StrOrEmpty(r.Extracted.Amount),
		utils.StrOrEmpty(r.Extracted.Receiver.Number),
		yesNo(r.Verdict.AmountMatch),
		yesNo(r.Verdict.ReceiverMatch),
		yesNo(r.Verdict.ReferenceValid),
		yesNo(r.Verdict.IsDuplicate),
		yesNo(r.TamperSuspected),
		utils.Truncate(utils.StrOrEmpty(r.RejectionReason), 500),
		decision,
		reviewedAt,
		r.ImageURL,
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
