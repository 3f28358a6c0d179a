package domain

// Interaction is a single persisted conversation turn for a user.
// Interactions are append-only; they are never mutated or deleted by this
// service (retention, if any, is a TTL policy on the store).
type Interaction struct {
	UserID    string
	Timestamp string
	Query     string
	Response  string
	MessageID string
	TTL       int64
}

// ChatMessage is the provider-agnostic chat message shape sent to the
// reasoning service.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
