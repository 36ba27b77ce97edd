package entity

type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleModel MessageRole = "model"
)

// TurnSource records why a turn was appended to the transcript.
type TurnSource string

const (
	SourceInstruction TurnSource = "instruction"
	SourceQuery       TurnSource = "query"
	SourceResponse    TurnSource = "response"
	SourceSteering    TurnSource = "steering"
	SourceReview      TurnSource = "review"
	SourceObservation TurnSource = "observation"
)

type Turn struct {
	Role   MessageRole `json:"role"`
	Source TurnSource  `json:"source"`
	Text   string      `json:"text"`
}
