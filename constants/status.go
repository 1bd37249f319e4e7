package constants

// VerificationStatus is the lifecycle state of a payment receipt.
type VerificationStatus string

// Stable values (store these exact strings in DB).
const (
	VerificationProcessing VerificationStatus = "processing" // transient, while the pipeline runs
	VerificationVerified   VerificationStatus = "verified"
	VerificationRejected   VerificationStatus = "rejected"
)

// IsTerminal reports whether the status is an outcome of processing.
func (s VerificationStatus) IsTerminal() bool {
	return s == VerificationVerified || s == VerificationRejected
}

// ParseVerificationStatus accepts any casing; ok is false for unknown values.
func ParseVerificationStatus(s string) (VerificationStatus, bool) {
	switch VerificationStatus(NormalizeToken(s)) {
	case VerificationProcessing:
		return VerificationProcessing, true
	case VerificationVerified:
		return VerificationVerified, true
	case VerificationRejected:
		return VerificationRejected, true
	}
	return "", false
}

// PaymentStatus is the order's payment state. This service only ever writes PaymentStatusPaid.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// PaymentMethod is how the customer chose to pay for an order.
type PaymentMethod string

const (
	PaymentMethodWallet         PaymentMethod = "wallet"
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// ReviewAction is an admin manual-review decision.
type ReviewAction string

const (
	ReviewApprove ReviewAction = "approve"
	ReviewReject  ReviewAction = "reject"
)

// Target returns the verification status an action moves a receipt into.
func (a ReviewAction) Target() VerificationStatus {
	if a == ReviewApprove {
		return VerificationVerified
	}
	return VerificationRejected
}

// Role is the caller role carried in access tokens.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)
