package enums

import "fmt"

// UserTier is the loyalty/role classification of an account. Tiers are
// ordered: authorization checks compare rank instead of matching on a
// specific value.
type UserTier string

const (
	TierUser      UserTier = "user"
	TierVIP       UserTier = "vip"
	TierModerator UserTier = "moderator"
	TierAdmin     UserTier = "admin"
)

var tierRank = map[UserTier]int{
	TierUser:      0,
	TierVIP:       1,
	TierModerator: 2,
	TierAdmin:     3,
}

// String implements fmt.Stringer.
func (t UserTier) String() string {
	return string(t)
}

// IsValid reports whether the value is a known UserTier.
func (t UserTier) IsValid() bool {
	_, ok := tierRank[t]
	return ok
}

// Rank returns the ordering position of the tier, -1 when unknown.
func (t UserTier) Rank() int {
	if rank, ok := tierRank[t]; ok {
		return rank
	}
	return -1
}

// AtLeast reports whether the tier grants at least the privileges of other.
func (t UserTier) AtLeast(other UserTier) bool {
	return t.IsValid() && other.IsValid() && t.Rank() >= other.Rank()
}

// ParseUserTier converts raw input into a UserTier.
func ParseUserTier(value string) (UserTier, error) {
	tier := UserTier(value)
	if !tier.IsValid() {
		return "", fmt.Errorf("invalid user tier %q", value)
	}
	return tier, nil
}
