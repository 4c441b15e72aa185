package shop

import "time"

// Company is the owning account for one or more shops. Its sandbox flag
// takes precedence over the shop's own flag when the shop is bound to a
// company.
type Company struct {
	ID        string
	Name      string
	IsSandbox bool
	Deleted   bool
}

// Shop is a seller's store on the marketplace together with the partner
// credentials used to sign requests on its behalf.
type Shop struct {
	ID                string // internal key (opaque)
	ShopID            int64  // marketplace shop id
	PartnerID         int64
	PartnerKey        string
	AccessToken       string
	RefreshToken      string
	ExpireAt          *time.Time
	Active            bool
	Deleted           bool
	PollWindowMinutes int
	IsSandbox         bool
	CompanyID         string
}

// TokenExpiring reports whether the access token is absent or expires
// within skew of now, meaning a refresh is required before any call.
func (s *Shop) TokenExpiring(now time.Time, skew time.Duration) bool {
	if s.AccessToken == "" {
		return true
	}
	if s.ExpireAt == nil {
		return true
	}
	return !now.Add(skew).Before(*s.ExpireAt)
}

// EffectiveSandbox resolves the sandbox environment for this shop. The
// company column wins over the shop's own flag when a company is bound.
func (s *Shop) EffectiveSandbox(company *Company) bool {
	if company != nil {
		return company.IsSandbox
	}
	return s.IsSandbox
}
