package domain

// TaskKindCostAnalysis tags asynchronous self-invocation payloads so the
// handler can tell them apart from inbound API Gateway events.
const TaskKindCostAnalysis = "cost_analysis"

// SlashCommand is the parsed inbound chat command.
type SlashCommand struct {
	Text        string
	UserName    string
	UserID      string
	ResponseURL string
}

// TaskRecord is the payload handed from the synchronous dispatcher to the
// background worker. It exists only for the duration of one async dispatch.
type TaskRecord struct {
	CallbackURL string `json:"callback_url"`
	Days        int    `json:"days"`
	Query       string `json:"query"`
	UserName    string `json:"user_name"`
	UserID      string `json:"user_id"`
}

// TaskEnvelope wraps a TaskRecord with its kind marker for the wire.
type TaskEnvelope struct {
	Kind string     `json:"kind"`
	Task TaskRecord `json:"task"`
}
