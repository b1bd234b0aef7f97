package gateway

import "encoding/xml"

// enrollmentResponse covers every shape the MPI enrollment endpoint has been
// seen to return. Fields absent from a given shape stay empty.
type enrollmentResponse struct {
	XMLName xml.Name `xml:"IPaySecure"`
	Message struct {
		ID    string `xml:"ID,attr"`
		VERes struct {
			Status  string `xml:"Status"`
			PaReq   string `xml:"PaReq"`
			TermURL string `xml:"TermUrl"`
			MD      string `xml:"MD"`
			ACSURL  string `xml:"ACSUrl"`
		} `xml:"VERes"`
	} `xml:"Message"`
	Status                    string `xml:"Status"`
	VerifyEnrollmentRequestID string `xml:"VerifyEnrollmentRequestId"`
	MessageErrorCode          string `xml:"MessageErrorCode"`
	ErrorCode                 string `xml:"ErrorCode"`
	ErrorMessage              string `xml:"ErrorMessage"`
	MessageErrorMessage       string `xml:"MessageErrorMessage"`
}

// vposRequest is sent form-encoded as the prmstr field
type vposRequest struct {
	XMLName                 xml.Name `xml:"VposRequest"`
	MerchantID              string   `xml:"MerchantId"`
	Password                string   `xml:"Password"`
	TerminalNo              string   `xml:"TerminalNo"`
	TransactionType         string   `xml:"TransactionType"`
	TransactionID           string   `xml:"TransactionId,omitempty"`
	CurrencyAmount          string   `xml:"CurrencyAmount"`
	CurrencyCode            string   `xml:"CurrencyCode"`
	Pan                     string   `xml:"Pan"`
	Cvv                     string   `xml:"Cvv,omitempty"`
	Expiry                  string   `xml:"Expiry"`
	ECI                     string   `xml:"ECI,omitempty"`
	CAVV                    string   `xml:"CAVV,omitempty"`
	MpiTransactionID        string   `xml:"MpiTransactionId,omitempty"`
	NumberOfInstallments    string   `xml:"NumberOfInstallments,omitempty"`
	ClientIP                string   `xml:"ClientIp"`
	TransactionDeviceSource string   `xml:"TransactionDeviceSource"`
}

type vposResponse struct {
	XMLName       xml.Name `xml:"VposResponse"`
	ResultCode    string   `xml:"ResultCode"`
	ResultDetail  string   `xml:"ResultDetail"`
	ErrorCode     string   `xml:"ErrorCode"`
	ErrorMessage  string   `xml:"ErrorMessage"`
	TransactionID string   `xml:"TransactionId"`
	Rrn           string   `xml:"Rrn"`
	AuthCode      string   `xml:"AuthCode"`
	HostDate      string   `xml:"HostDate"`
	ECI           string   `xml:"ECI"`
}
