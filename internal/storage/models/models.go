package models

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Lesson struct {
	ID    int64
	Title string
	Pages []Page
}

type Page struct {
	ID       int64
	LessonID int64
	Number   int
	Title    string
	Filename string
	FileURL  string
}

// LearningHistoryEntry is the last page a user visited in a lesson. There is
// at most one entry per (user, title).
type LearningHistoryEntry struct {
	UserID    string
	Title     string
	Page      int
	VisitedAt time.Time
}

type ChatExchange struct {
	ID        string
	UserID    string
	Role      string
	Content   string
	Timestamp time.Time
}
