package utils

import (
	"github.com/google/uuid"
)

// auctionNamespace scopes the name-based auction ids.
var auctionNamespace = uuid.MustParse("6f1c2a8e-3b7d-4e52-9a0f-5d8c1e4b7a63")

// GenerateID returns a random id with a readable prefix, e.g. "job_9f0c...".
func GenerateID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// AuctionID derives the auction address from its (agent, creator) pair.
// The same pair always maps to the same id, which is what makes creation
// collide on a second attempt.
func AuctionID(agent, creator string) string {
	return uuid.NewSHA1(auctionNamespace, []byte("auction:"+agent+":"+creator)).String()
}
