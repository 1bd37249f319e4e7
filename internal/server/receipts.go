package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/payment-receipts/constants"
	"github.com/joseph-ayodele/payment-receipts/internal/common"
	"github.com/joseph-ayodele/payment-receipts/internal/entity"
	"github.com/joseph-ayodele/payment-receipts/internal/receipts"
)

// multipartOverhead is allowed on top of the image limit for form fields and boundaries.
const multipartOverhead = 1 << 20

// ReceiptService is the receipt lifecycle as seen by the HTTP layer.
type ReceiptService interface {
	Upload(ctx context.Context, req receipts.UploadRequest) (*entity.PaymentReceipt, error)
	VerifyOnly(ctx context.Context, req receipts.VerifyRequest) (*receipts.VerifyResult, error)
	Review(ctx context.Context, req receipts.ReviewRequest) (*entity.PaymentReceipt, error)
	GetReceipt(ctx context.Context, p common.Principal, receiptID string) (*entity.PaymentReceipt, error)
	GetReceiptForOrder(ctx context.Context, p common.Principal, orderID string) (*entity.PaymentReceipt, error)
	ListReceipts(ctx context.Context, req receipts.ListRequest) (*receipts.ListResult, error)
}

type ReceiptHandler struct {
	svc           ReceiptService
	maxImageBytes int64
	logger        *slog.Logger
}

func NewReceiptHandler(svc ReceiptService, maxImageBytes int64, logger *slog.Logger) *ReceiptHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = constants.DefaultMaxImageBytes
	}
	return &ReceiptHandler{svc: svc, maxImageBytes: maxImageBytes, logger: logger}
}

// UploadReceipt handles POST /orders/{orderID}/receipt.
func (h *ReceiptHandler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	p, _ := common.PrincipalFromContext(r.Context())
	img, contentType, err := h.readImage(w, r)
	if err != nil {
		WriteAppError(w, r, h.logger, err)
		return
	}
	rec, err := h.svc.Upload(r.Context(), receipts.UploadRequest{
		Principal:   p,
		OrderID:     chi.URLParam(r, "orderID"),
		Image:       img,
		ContentType: contentType,
	})
	if err != nil {
		WriteAppError(w, r, h.logger, err)
		return
	}
	WriteData(w, http.StatusCreated, rec)
}

// GetOrderReceipt handles GET /orders/{orderID}/receipt.
func (h *ReceiptHandler) GetOrderReceipt(w http.ResponseWriter, r *http.Request) {
	p, _ := common.PrincipalFromContext(r.Context())
	rec, err := h.svc.GetReceiptForOrder(r.Context(), p, chi.URLParam(r, "orderID"))
	if err != nil {
		WriteAppError(w, r, h.logger, err)
		return
	}
	WriteData(w, http.StatusOK, rec)
}

func (h *ReceiptHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	p, _ := common.PrincipalFromContext(r.Context())
	rec, err := h.svc.GetReceipt(r.Context(), p, chi.URLParam(r, "receiptID"))
	if err != nil {
		WriteAppError(w, r, h.logger, err)
		return
	}
	WriteData(w, http.StatusOK, rec)
}

// VerifyReceipt handles POST /receipts/verify: multipart image plus an "order" JSON field.
func (h *ReceiptHandler) VerifyReceipt(w http.ResponseWriter, r *http.Request) {
	p, _ := common.PrincipalFromContext(r.Context())
	img, contentType, err := h.readImage(w, r)
	if err != nil {
		WriteAppError(w, r, h.logger, err)
		return
	}
	raw := r.FormValue("order")
	if strings.TrimSpace(raw) == "" {
		WriteAppError(w, r, h.logger, common.InvalidInputf("order field is required"))
		return
	}
	var order receipts.ProvisionalOrder
	if err := common.DecodeAndValidate(strings.NewReader(raw), &order); err != nil {
		WriteAppError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.VerifyOnly(r.Context(), receipts.VerifyRequest{
		Principal:   p,
		Order:       order,
		Image:       img,
		ContentType: contentType,
	})
	if err != nil {
		WriteAppError(w, r, h.logger, err)
		return
	}
	WriteData(w, http.StatusOK, res)
}

type reviewBody struct {
	Action constants.ReviewAction `json:"action" validate:"required"`
	Notes  string                 `json:"notes"`
}

// ReviewReceipt handles POST /admin/receipts/{receiptID}/review.
func (h *ReceiptHandler) ReviewReceipt(w http.ResponseWriter, r *http.Request) {
	p, _ := common.PrincipalFromContext(r.Context())
	var body reviewBody
	if err := common.DecodeAndValidate(http.MaxBytesReader(w, r.Body, 64<<10), &body); err != nil {
		WriteAppError(w, r, h.logger, err)
		return
	}
	rec, err := h.svc.Review(r.Context(), receipts.ReviewRequest{
		Principal: p,
		ReceiptID: chi.URLParam(r, "receiptID"),
		Action:    body.Action,
		Notes:     body.Notes,
	})
	if err != nil {
		WriteAppError(w, r, h.logger, err)
		return
	}
	WriteData(w, http.StatusOK, rec)
}

// ListReceipts handles GET /admin/receipts?status=&limit=&offset=.
func (h *ReceiptHandler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	p, _ := common.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), "limit")
	if err != nil {
		WriteAppError(w, r, h.logger, err)
		return
	}
	offset, err := queryInt(q.Get("offset"), "offset")
	if err != nil {
		WriteAppError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.ListReceipts(r.Context(), receipts.ListRequest{
		Principal: p,
		Status:    q.Get("status"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		WriteAppError(w, r, h.logger, err)
		return
	}
	WriteData(w, http.StatusOK, res)
}

// readImage pulls the "image" part of a multipart request. The content type comes from the
// part header and falls back to sniffing.
func (h *ReceiptHandler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxImageBytes + multipartOverhead); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, "", common.InvalidInputf("receipt image exceeds %d bytes", h.maxImageBytes)
		}
		return nil, "", common.InvalidInputf("expected a multipart form with an image field")
	}
	file, hdr, err := r.FormFile("image")
	if err != nil {
		return nil, "", common.InvalidInputf("image field is required")
	}
	defer file.Close()

	img, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		return nil, "", common.InvalidInputf("could not read image: %v", err)
	}
	return img, partContentType(hdr, img), nil
}

func partContentType(hdr *multipart.FileHeader, img []byte) string {
	ct := constants.NormalizeContentType(hdr.Header.Get("Content-Type"))
	if _, ok := constants.ExtForContentType(ct); ok {
		return ct
	}
	return constants.NormalizeContentType(http.DetectContentType(img))
}

func queryInt(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, common.InvalidInputf("%s must be an integer", name)
	}
	return n, nil
}
