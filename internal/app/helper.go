package app

import "github.com/HaPhanBaoMinh/kskew/internal/domain"

// clamp clamps v into [min, max].
func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ownerColWidths splits the table width, giving the owner column what the
// numeric columns leave over.
func ownerColWidths(total int) (wOwner, wTotal, wSkew, wDomains int) {
	wTotal, wSkew, wDomains = 7, 10, 9
	wOwner = clamp(total-wTotal-wSkew-wDomains-8, 24, 80)
	return
}

// detailColWidths sizes the domain label to the longest domain and gives the
// bar the rest.
func detailColWidths(total int, cells []domain.SkewCell) (wDomain, wBar int) {
	for _, c := range cells {
		if len(c.Domain) > wDomain {
			wDomain = len(c.Domain)
		}
	}
	wDomain = clamp(wDomain, 8, 48)
	// count, skew label and separators
	wBar = clamp(total-wDomain-18, 6, 50)
	return
}
