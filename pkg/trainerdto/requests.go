package trainerdto

type CreateSessionRequest struct {
	Player string `json:"player,omitempty"`
}

type CreateSessionResponse struct {
	ID string `json:"id"`
}

// StartRequest configures a game. Empty fields take the session defaults.
type StartRequest struct {
	Mode        string `json:"mode,omitempty"`
	Tier        string `json:"tier,omitempty"`
	HumanColor  string `json:"humanColor,omitempty"`
	TimeControl string `json:"timeControl,omitempty"`
}

// MoveRequest carries either from/to(/promotion) or a UCI string.
type MoveRequest struct {
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
	UCI       string `json:"uci,omitempty"`
}

type ChatRequest struct {
	Text string `json:"text"`
}

type ChatResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Move    string `json:"move,omitempty"`
}

type DrillStepRequest struct {
	Index *int   `json:"index,omitempty"`
	Step  string `json:"step,omitempty"` // next, prev, reset
}
