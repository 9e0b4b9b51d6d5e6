// Package quota maps a subscription tier to numeric limits.
package quota

import (
	"fmt"

	"github.com/tandatangan/tandatangan/backend/go-services/internal/document"
)

// Unlimited marks a resource without a ceiling for the tier.
const Unlimited = -1

// Resource names a counted quantity.
type Resource string

const (
	GroupDocuments   Resource = "group_documents"
	DocumentVersions Resource = "document_versions"
	GroupMembers     Resource = "group_members"
	PackageDocuments Resource = "package_documents"
	OwnedGroups      Resource = "owned_groups"
)

// Limits is the set of ceilings for one tier.
type Limits struct {
	GroupDocuments   int
	DocumentVersions int
	GroupMembers     int
	PackageDocuments int
	OwnedGroups      int
}

var (
	free = Limits{
		GroupDocuments:   10,
		DocumentVersions: 5,
		GroupMembers:     5,
		PackageDocuments: 3,
		OwnedGroups:      1,
	}
	premium = Limits{
		GroupDocuments:   100,
		DocumentVersions: 20,
		GroupMembers:     Unlimited,
		PackageDocuments: 20,
		OwnedGroups:      10,
	}
)

// For returns the limits of the given tier.
func For(isPremium bool) Limits {
	if isPremium {
		return premium
	}
	return free
}

// Of returns the limit of one resource.
func (l Limits) Of(r Resource) int {
	switch r {
	case GroupDocuments:
		return l.GroupDocuments
	case DocumentVersions:
		return l.DocumentVersions
	case GroupMembers:
		return l.GroupMembers
	case PackageDocuments:
		return l.PackageDocuments
	case OwnedGroups:
		return l.OwnedGroups
	}
	return 0
}

// Check fails with document.ErrPolicyLimitExceeded when current has already
// reached the tier limit, i.e. the limit value itself blocks the next mutation.
func Check(r Resource, current int, isPremium bool) error {
	limit := For(isPremium).Of(r)
	if limit == Unlimited || current < limit {
		return nil
	}
	e := document.NewError(document.KindPolicyLimitExceeded, message(r, limit, isPremium))
	e.Limit = limit
	return e
}

func message(r Resource, limit int, isPremium bool) string {
	var what, unit string
	switch r {
	case GroupDocuments:
		what, unit = "Batas dokumen grup tercapai", "dokumen"
	case DocumentVersions:
		what, unit = "Batas versi dokumen tercapai", "versi"
	case GroupMembers:
		what, unit = "Batas anggota grup tercapai", "anggota"
	case PackageDocuments:
		what, unit = "Batas dokumen dalam paket tercapai", "dokumen"
	case OwnedGroups:
		what, unit = "Batas grup yang dimiliki tercapai", "grup"
	default:
		what, unit = "Batas paket tercapai", "item"
	}
	msg := fmt.Sprintf("%s (%d %s).", what, limit, unit)
	if isPremium {
		return msg
	}
	up := premium.Of(r)
	if up == Unlimited {
		return msg + fmt.Sprintf(" Upgrade ke Premium untuk %s tanpa batas.", unit)
	}
	return msg + fmt.Sprintf(" Upgrade ke Premium untuk %d %s.", up, unit)
}
