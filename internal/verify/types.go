package verify

import (
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Verdict statuses on the wire.
const (
	StatusGood    = "good"
	StatusBad     = "bad"
	StatusInvalid = "invalid"
)

// RequestInfo carries the caller environment metadata. All fields are
// optional on the wire; the integrity check rejects an absent controller
// hash on its own.
type RequestInfo struct {
	Domain         string `json:"domain"`
	OwnerName      string `json:"owner_name"`
	PanelVersion   string `json:"panel_version"`
	IPAddress      string `json:"ip_address"`
	ControllerHash string `json:"controller_hash"`
}

// VerificationRequest is the JSON body of a verification call. Key, product
// and info must all be present for the request to be well formed.
type VerificationRequest struct {
	Key     string       `json:"key" validate:"required"`
	Product string       `json:"product" validate:"required"`
	Info    *RequestInfo `json:"info" validate:"required"`
}

// VerificationResponse is the signed verdict returned to the caller. The
// signature is present if and only if status is "good".
type VerificationResponse struct {
	Status    string `json:"status"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
}

// Outcome is a verdict plus the HTTP status code it maps to.
type Outcome struct {
	Status     string
	Signature  string
	Timestamp  int64
	HTTPStatus int
}

// Response converts an outcome to its wire shape.
func (o *Outcome) Response() VerificationResponse {
	return VerificationResponse{
		Status:    o.Status,
		Signature: o.Signature,
		Timestamp: o.Timestamp,
	}
}

var validate = validator.New()

// ValidateRequest checks the structural shape of a verification request.
func ValidateRequest(req *VerificationRequest) error {
	return validate.Struct(req)
}

// statusCodes maps verdict statuses to their HTTP codes for the lookup step.
var statusCodes = map[string]int{
	StatusGood:    http.StatusOK,
	StatusBad:     http.StatusForbidden,
	StatusInvalid: http.StatusUnauthorized,
}
