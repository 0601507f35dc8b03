package core

import "time"

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type Link struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Slug      string    `json:"slug"`
	TargetURL string    `json:"targetUrl"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"createdAt"`
}
