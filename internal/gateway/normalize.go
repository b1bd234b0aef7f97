package gateway

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"
)

// EnrollmentKind tags the normalized enrollment answer
type EnrollmentKind int

const (
	KindError EnrollmentKind = iota
	KindEnrolled
	KindNotEnrolled
)

func (k EnrollmentKind) String() string {
	switch k {
	case KindEnrolled:
		return "enrolled"
	case KindNotEnrolled:
		return "not_enrolled"
	}
	return "error"
}

// EnrollmentResult is the only enrollment shape callers see
type EnrollmentResult struct {
	Kind                      EnrollmentKind
	Status                    string
	ACSURL                    string
	PaReq                     string
	TermURL                   string
	MD                        string
	VerifyEnrollmentRequestID string
	ErrorCode                 string
	ErrorMessage              string
	Raw                       string
}

// ProvisionResult is the normalized provisioning answer
type ProvisionResult struct {
	Approved      bool
	ResultCode    string
	ResultDetail  string
	TransactionID string
	Rrn           string
	AuthCode      string
	HostDate      string
	ECI           string
	Raw           string
}

const approvedResultCode = "0000"

func decodeXML(body []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel
	return dec.Decode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// NormalizeEnrollment maps a raw enrollment response body to an EnrollmentResult.
// Only an undecodable body is an error; bank-side failures come back as KindError.
func NormalizeEnrollment(body []byte) (*EnrollmentResult, error) {
	var resp enrollmentResponse
	if err := decodeXML(body, &resp); err != nil {
		return nil, fmt.Errorf("decode enrollment response: %w", err)
	}

	veres := resp.Message.VERes
	res := &EnrollmentResult{
		Status:                    strings.ToUpper(firstNonEmpty(veres.Status, resp.Status)),
		ACSURL:                    strings.TrimSpace(veres.ACSURL),
		PaReq:                     strings.TrimSpace(veres.PaReq),
		TermURL:                   strings.TrimSpace(veres.TermURL),
		MD:                        strings.TrimSpace(veres.MD),
		VerifyEnrollmentRequestID: firstNonEmpty(resp.VerifyEnrollmentRequestID, resp.Message.ID),
		ErrorCode:                 firstNonEmpty(resp.MessageErrorCode, resp.ErrorCode),
		ErrorMessage:              firstNonEmpty(resp.ErrorMessage, resp.MessageErrorMessage),
		Raw:                       string(body),
	}

	switch {
	case res.Status == "Y" && res.ACSURL != "" && res.PaReq != "":
		res.Kind = KindEnrolled
	case res.Status == "N":
		res.Kind = KindNotEnrolled
	default:
		res.Kind = KindError
		if res.ErrorCode == "" {
			res.ErrorCode = "ENROLLMENT_" + firstNonEmpty(res.Status, "UNKNOWN")
		}
		if res.ErrorMessage == "" {
			res.ErrorMessage = "card enrollment could not be verified"
		}
	}
	return res, nil
}

// NormalizeProvision maps a raw provisioning response body to a ProvisionResult.
func NormalizeProvision(body []byte) (*ProvisionResult, error) {
	var resp vposResponse
	if err := decodeXML(body, &resp); err != nil {
		return nil, fmt.Errorf("decode provision response: %w", err)
	}

	code := firstNonEmpty(resp.ResultCode, resp.ErrorCode)
	return &ProvisionResult{
		Approved:      code == approvedResultCode,
		ResultCode:    code,
		ResultDetail:  firstNonEmpty(resp.ResultDetail, resp.ErrorMessage),
		TransactionID: strings.TrimSpace(resp.TransactionID),
		Rrn:           strings.TrimSpace(resp.Rrn),
		AuthCode:      strings.TrimSpace(resp.AuthCode),
		HostDate:      strings.TrimSpace(resp.HostDate),
		ECI:           strings.TrimSpace(resp.ECI),
		Raw:           string(body),
	}, nil
}
