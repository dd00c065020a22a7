package event

const CredentialCreatedDestination string = "credential_created"
const CredentialDeletedDestination string = "credential_deleted"
const CredentialCounterAdvancedDestination string = "credential_counter_advanced"

// CredentialCreatedMessage never carries the shared secret.
type CredentialCreatedMessage struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Issuer    string `json:"issuer,omitempty"`
	Source    string `json:"source"`
	CreatedAt int64  `json:"created_at"`
}

type CredentialDeletedMessage struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DeletedAt int64  `json:"deleted_at"`
}

type CredentialCounterAdvancedMessage struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	From       uint64 `json:"from"`
	To         uint64 `json:"to"`
	Reason     string `json:"reason"`
	AdvancedAt int64  `json:"advanced_at"`
}
