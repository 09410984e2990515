package services

import "service-auction/internal/domain"

// StaticAuthorizer treats a fixed set of identities as the protocol
// authority allowed to finalize any auction.
type StaticAuthorizer struct {
	authorities map[string]struct{}
}

func NewStaticAuthorizer(ids ...string) *StaticAuthorizer {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			m[id] = struct{}{}
		}
	}
	return &StaticAuthorizer{authorities: m}
}

func (a *StaticAuthorizer) IsProtocolAuthority(identity domain.Identity) bool {
	if !identity.IsSigner() {
		return false
	}
	_, ok := a.authorities[identity.ID]
	return ok
}
