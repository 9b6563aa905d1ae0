package scanning

import (
	"strings"

	"github.com/zombor/bill-tracker/internal/bill"
)

// vendorKeywords are checked in order; the first category with a keyword
// contained in the vendor name wins.
var vendorKeywords = []struct {
	category bill.Category
	keywords []string
}{
	{bill.CategoryElectricity, []string{"electricity", "power", "discom", "bescom", "msedcl", "adani", "torrent", "bses", "kseb", "tneb", "cesc"}},
	{bill.CategoryWater, []string{"water", "jal", "municipal", "bwssb", "hmwssb"}},
	{bill.CategoryGas, []string{"gas", "indraprastha", "mahanagar", "gail", "indane"}},
	{bill.CategoryInternet, []string{"internet", "broadband", "fiber", "fibernet", "hathway", "spectra"}},
	{bill.CategoryMobile, []string{"mobile", "prepaid", "postpaid", "recharge", "vodafone", "airtel", "jio"}},
	{bill.CategoryMedical, []string{"hospital", "clinic", "pharmacy", "medical", "diagnostic", "pathology", "apollo"}},
	{bill.CategoryInsurance, []string{"insurance", "policy", "life"}},
	{bill.CategoryGroceries, []string{"grocery", "supermarket", "mart", "kirana", "bazaar", "fresh"}},
	{bill.CategoryFuel, []string{"petrol", "diesel", "fuel", "petroleum", "iocl", "bpcl", "hpcl"}},
	{bill.CategoryRent, []string{"rent", "lease"}},
	{bill.CategoryMaintenance, []string{"maintenance", "society", "association"}},
}

// GuessCategory suggests a category from the vendor name alone. An empty
// vendor yields no suggestion; an unrecognised one yields other.
func GuessCategory(vendor string) bill.Category {
	v := strings.ToLower(strings.TrimSpace(vendor))
	if v == "" {
		return ""
	}
	for _, vk := range vendorKeywords {
		for _, kw := range vk.keywords {
			if strings.Contains(v, kw) {
				return vk.category
			}
		}
	}
	return bill.CategoryOther
}
