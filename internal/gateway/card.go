package gateway

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Brand is the card network
type Brand string

const (
	BrandUnknown    Brand = ""
	BrandVisa       Brand = "visa"
	BrandMasterCard Brand = "mastercard"
	BrandTroy       Brand = "troy"
	BrandAmex       Brand = "amex"
)

var brandCodes = map[Brand]string{
	BrandVisa:       "100",
	BrandMasterCard: "200",
	BrandTroy:       "300",
	BrandAmex:       "400",
}

// Code is the BrandName value the enrollment endpoint expects
func (b Brand) Code() string {
	return brandCodes[b]
}

// eciTable is used when the ACS callback omits Eci
var eciTable = map[Brand]map[string]string{
	BrandVisa:       {"Y": "05", "A": "06"},
	BrandMasterCard: {"Y": "02", "A": "01"},
	BrandTroy:       {"Y": "05", "A": "06"},
	BrandAmex:       {"Y": "05", "A": "06"},
}

// ECIFor derives the ECI for a brand and 3D status, or "" when unknown
func ECIFor(brand Brand, status string) string {
	return eciTable[brand][strings.ToUpper(status)]
}

// Card is raw card input. It is never persisted.
type Card struct {
	Number      string
	ExpiryMonth int
	ExpiryYear  int
	CVV         string
}

// Normalize strips spaces and dashes from the PAN and expands two-digit years
func (c Card) Normalize() Card {
	c.Number = DigitsOnly(c.Number)
	if c.ExpiryYear < 100 {
		c.ExpiryYear += 2000
	}
	return c
}

// Validate checks PAN checksum and expiry against now
func (c Card) Validate(now time.Time) error {
	if !ValidLuhn(c.Number) {
		return fmt.Errorf("card number is invalid")
	}
	if c.ExpiryMonth < 1 || c.ExpiryMonth > 12 {
		return fmt.Errorf("expiry month is invalid")
	}
	endOfMonth := time.Date(c.ExpiryYear, time.Month(c.ExpiryMonth)+1, 1, 0, 0, 0, 0, now.Location())
	if !now.Before(endOfMonth) {
		return fmt.Errorf("card has expired")
	}
	if len(c.CVV) < 3 || len(c.CVV) > 4 || DigitsOnly(c.CVV) != c.CVV {
		return fmt.Errorf("cvv is invalid")
	}
	return nil
}

// ExpiryYYMM is the enrollment expiry format
func (c Card) ExpiryYYMM() string {
	return fmt.Sprintf("%02d%02d", c.ExpiryYear%100, c.ExpiryMonth)
}

// ExpiryYYYYMM is the provisioning expiry format
func (c Card) ExpiryYYYYMM() string {
	return fmt.Sprintf("%04d%02d", c.ExpiryYear, c.ExpiryMonth)
}

// DetectBrand infers the network from the PAN prefix
func DetectBrand(pan string) Brand {
	pan = DigitsOnly(pan)
	switch {
	case strings.HasPrefix(pan, "9792"):
		return BrandTroy
	case strings.HasPrefix(pan, "34"), strings.HasPrefix(pan, "37"):
		return BrandAmex
	case strings.HasPrefix(pan, "4"):
		return BrandVisa
	case len(pan) >= 2 && pan[0] == '5' && pan[1] >= '1' && pan[1] <= '5':
		return BrandMasterCard
	case len(pan) >= 4 && pan[:4] >= "2221" && pan[:4] <= "2720":
		return BrandMasterCard
	}
	return BrandUnknown
}

// ValidLuhn reports whether pan passes the mod-10 checksum
func ValidLuhn(pan string) bool {
	if len(pan) < 12 || len(pan) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(pan) - 1; i >= 0; i-- {
		r := pan[i]
		if r < '0' || r > '9' {
			return false
		}
		d := int(r - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// MaskPAN keeps the BIN and last four digits
func MaskPAN(pan string) string {
	pan = DigitsOnly(pan)
	if len(pan) < 10 {
		return strings.Repeat("*", len(pan))
	}
	return pan[:6] + strings.Repeat("*", len(pan)-10) + pan[len(pan)-4:]
}

func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
