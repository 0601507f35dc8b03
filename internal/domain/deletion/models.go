package deletion

import "time"

type DeleteRequest struct {
	ID                  string     `json:"id"`
	UserID              string     `json:"userId"`
	AdminID             string     `json:"adminId"`
	Reason              string     `json:"reason"`
	Token               string     `json:"-"`
	Status              string     `json:"status"`
	ExpiresAt           time.Time  `json:"expiresAt"`
	ScheduledDeletionAt *time.Time `json:"scheduledDeletionAt,omitempty"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
}

// RequestWithAdmin is the audit-history view of a request joined with the
// issuing admin's display data.
type RequestWithAdmin struct {
	DeleteRequest
	AdminName  string `json:"adminName"`
	AdminEmail string `json:"adminEmail"`
}

type SweepItem struct {
	RequestID string `json:"requestId"`
	UserID    string `json:"userId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type SweepResult struct {
	ProcessedCount int         `json:"processedCount"`
	Results        []SweepItem `json:"results"`
}

// RemovedCounts records how many rows each data category lost during
// execution; it is attached to the completion audit record.
type RemovedCounts struct {
	Links        int64 `json:"links"`
	Notes        int64 `json:"notes"`
	Warnings     int64 `json:"warnings"`
	AdminActions int64 `json:"adminActions"`
}
