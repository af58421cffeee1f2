package model

// NoticeKind classifies a user-facing session notice.
type NoticeKind string

// Notice kinds.
const (
	NoticeTracking NoticeKind = "tracking"
	NoticeExpired  NoticeKind = "expired"
	NoticeLogout   NoticeKind = "logout"
)

// Notice is a plain-text message about a session, addressed to whoever
// started it.
type Notice struct {
	Kind        NoticeKind `json:"kind"`
	SessionID   string     `json:"session_id"`
	CharacterID EntityID   `json:"character_id,string"`
	Name        string     `json:"character_name"`
	Target      string     `json:"target"`
	Text        string     `json:"text"`
}
