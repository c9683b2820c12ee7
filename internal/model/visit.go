package model

import (
	"time"
)

// VisitRecord is one recorded page view. Rows are append-only; only the
// retention sweeper and the invalid-visit purge delete them.
type VisitRecord struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Path      string    `gorm:"size:500;not null;index" json:"path"`
	Title     string    `gorm:"size:200" json:"title,omitempty"`
	IP        string    `gorm:"size:45" json:"ip"`
	UserAgent string    `gorm:"size:500" json:"user_agent"`
	Browser   string    `gorm:"size:50" json:"browser"`
	OS        string    `gorm:"size:100" json:"os"`
	Device    string    `gorm:"size:20" json:"device"` // mobile | desktop | bot
	VisitedAt time.Time `gorm:"not null;index" json:"visited_at"`
}

func (VisitRecord) TableName() string {
	return "visit_records"
}

const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	DeviceBot     = "bot"
)

// PathCount is a (path, visits) pair used by the stats report.
type PathCount struct {
	Path  string `json:"path"`
	Count int64  `json:"count"`
}

// VisitStats summarises the visit table.
type VisitStats struct {
	Total       int64       `json:"total"`
	Public      int64       `json:"public"`
	Admin       int64       `json:"admin"`
	Today       int64       `json:"today"`
	LastWeek    int64       `json:"last_week"`
	LastMonth   int64       `json:"last_month"`
	UniqueIPs   int64       `json:"unique_ips"`
	TopPaths    []PathCount `json:"top_paths"`
	OldestVisit *time.Time  `json:"oldest_visit,omitempty"`
	NewestVisit *time.Time  `json:"newest_visit,omitempty"`
}

// VisitFilter selects records for the invalid-visit purge.
type VisitFilter struct {
	PathPrefixes    []string
	PathContains    []string
	UserAgentTokens []string
	MinUserAgentLen int
}
