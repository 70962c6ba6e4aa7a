package inventory

import "strings"

// ResolveIdentity returns the index of the product line matches, or -1.
// Precedence: non-temporary id, then barcode, then catalog number other than CatalogNumberUnknown.
func ResolveIdentity(products []Product, line Product) int {
	if !IsTemporaryID(line.ID) {
		for i := range products {
			if products[i].ID == line.ID {
				return i
			}
		}
	}
	if barcode := strings.TrimSpace(line.Barcode); barcode != "" {
		for i := range products {
			if products[i].Barcode == barcode {
				return i
			}
		}
	}
	if catalog := strings.TrimSpace(line.CatalogNumber); catalog != "" && catalog != CatalogNumberUnknown {
		for i := range products {
			if products[i].CatalogNumber == catalog {
				return i
			}
		}
	}
	return -1
}

// keepIdentityUnique clears the barcode or catalog number of line when a product other than
// products[idx] already owns it, and reports which fields were dropped.
func keepIdentityUnique(products []Product, idx int, line Product) (Product, []string) {
	var dropped []string
	for i := range products {
		if i == idx {
			continue
		}
		if line.Barcode != "" && products[i].Barcode == line.Barcode {
			line.Barcode = ""
			dropped = append(dropped, "barcode")
		}
		if line.CatalogNumber != "" && line.CatalogNumber != CatalogNumberUnknown && products[i].CatalogNumber == line.CatalogNumber {
			line.CatalogNumber = ""
			dropped = append(dropped, "catalogNumber")
		}
	}
	return line, dropped
}

// prepareLine trims identity fields, fills derived fields and recomputes the line total.
func prepareLine(line Product) Product {
	line.ID = strings.TrimSpace(line.ID)
	line.Barcode = strings.TrimSpace(line.Barcode)
	line.CatalogNumber = strings.TrimSpace(line.CatalogNumber)
	if line.CatalogNumber == "" {
		line.CatalogNumber = CatalogNumberUnknown
	}
	line.Description = strings.TrimSpace(line.Description)
	line.ShortName = strings.TrimSpace(line.ShortName)
	if line.ShortName == "" {
		line.ShortName = shortNameFrom(line.Description)
	}
	line.UnitPrice = effectiveUnitPrice(line)
	line.Recompute()
	return line
}

func shortNameFrom(description string) string {
	words := strings.Fields(description)
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.Join(words, " ")
}
