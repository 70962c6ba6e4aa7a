package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// FlexFloat decodes JSON numbers as well as numeric strings such as "1,234.50" or "₪12.90".
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		*f = 0
		return nil
	}
	text := string(raw)
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	text = strings.TrimFunc(text, func(r rune) bool {
		return strings.ContainsRune("₪$€£ ", r)
	})
	if text == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || !finite(v) {
		return fmt.Errorf("inventory: %s is not a number", string(raw))
	}
	*f = FlexFloat(v)
	return nil
}

// FlexString decodes JSON strings and numbers; POS payloads often send barcodes as numbers.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(raw, []byte("null")):
		*s = ""
	case len(raw) > 0 && raw[0] == '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
		*s = FlexString(text)
	default:
		var num json.Number
		if err := json.Unmarshal(raw, &num); err != nil {
			return fmt.Errorf("inventory: %s is not a string or number", string(raw))
		}
		*s = FlexString(num.String())
	}
	return nil
}

// ExternalProductLine is the loosely typed product shape produced by OCR and POS collaborators.
type ExternalProductLine struct {
	ID            FlexString `json:"id,omitempty"`
	CatalogNumber FlexString `json:"catalogNumber,omitempty"`
	Barcode       FlexString `json:"barcode,omitempty"`
	Description   string     `json:"description,omitempty"`
	ShortName     string     `json:"shortName,omitempty"`
	Quantity      FlexFloat  `json:"quantity"`
	UnitPrice     FlexFloat  `json:"unitPrice"`
	LineTotal     FlexFloat  `json:"lineTotal"`
	SalePrice     *FlexFloat `json:"salePrice,omitempty"`
	MinStockLevel *FlexFloat `json:"minStockLevel,omitempty"`
	MaxStockLevel *FlexFloat `json:"maxStockLevel,omitempty"`
}

// Normalize converts the line into the core Product type. ShortName stays empty unless supplied,
// so merges do not overwrite a stored short name with a derived one.
func (l ExternalProductLine) Normalize() Product {
	p := Product{
		ID:            cleanText(string(l.ID)),
		CatalogNumber: cleanText(string(l.CatalogNumber)),
		Barcode:       cleanText(string(l.Barcode)),
		Description:   cleanText(l.Description),
		ShortName:     cleanText(l.ShortName),
		Quantity:      float64(l.Quantity),
		UnitPrice:     float64(l.UnitPrice),
		LineTotal:     float64(l.LineTotal),
		SalePrice:     flexPtr(l.SalePrice),
		MinStockLevel: flexPtr(l.MinStockLevel),
		MaxStockLevel: flexPtr(l.MaxStockLevel),
	}
	if p.CatalogNumber == "" {
		p.CatalogNumber = CatalogNumberUnknown
	}
	p.UnitPrice = effectiveUnitPrice(p)
	p.Recompute()
	return p
}

// NormalizeLines converts a batch.
func NormalizeLines(lines []ExternalProductLine) []Product {
	out := make([]Product, 0, len(lines))
	for _, line := range lines {
		out = append(out, line.Normalize())
	}
	return out
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func flexPtr(f *FlexFloat) *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}
