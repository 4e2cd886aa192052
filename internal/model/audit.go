package model

type AuditActor struct {
	UserID string `json:"user_id,omitempty"`
	Role   string `json:"role,omitempty"`
	IP     string `json:"ip,omitempty"`
}

type AuditEntry struct {
	Action     string     `json:"action"`
	OccurredAt string     `json:"occurred_at"`
	Actor      AuditActor `json:"actor"`
	Status     string     `json:"status"`
	Resource   string     `json:"resource,omitempty"`
	Before     any        `json:"before,omitempty"`
	After      any        `json:"after,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type AuditQuery struct {
	Action  string
	ActorID string
	Status  string
	TaskID  string
	From    string
	To      string
	Page    int
	Limit   int
}

func (q AuditQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Caller is the authenticated identity behind a request plus where it came from.
type Caller struct {
	Identity Identity
	IP       string
}

func (c Caller) AuditActor() AuditActor {
	return AuditActor{UserID: c.Identity.UserID, Role: c.Identity.Role, IP: c.IP}
}
