package profile

// Principal is the identity a Profile is keyed by for one conversation.
type Principal struct {
	ID           string `json:"id"`
	Personalized bool   `json:"personalized"`
	DeviceID     string `json:"deviceId"`
}

// IdentityLink maps a device-scoped identity to a person-scoped one.
type IdentityLink struct {
	DeviceID  string `json:"deviceId"`
	PersonID  string `json:"personId"`
	CreatedAt int64  `json:"createdAt"`
}

// EnableEvent is an append-only audit record written when the skill is enabled.
type EnableEvent struct {
	ID           string `json:"id"`
	PrincipalID  string `json:"principalId"`
	EpochSeconds int64  `json:"epochSeconds"`
}
