package domain

// Identity is an authenticated caller. Signer is only true when the
// identity layer verified the caller's credential for this request.
type Identity struct {
	ID     string
	Signer bool
}

func (i Identity) Matches(id string) bool {
	return id != "" && i.ID == id
}

func (i Identity) IsSigner() bool {
	return i.Signer && i.ID != ""
}
