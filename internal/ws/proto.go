package ws

// ServerMsg is the frame sent to dashboard clients. Data carries the
// event payload: a reading, an intelligence brief or a reset snapshot.
type ServerMsg struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
