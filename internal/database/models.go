package database

import "time"

// LogType tags a message log entry with the kind of update that produced it.
type LogType string

const (
	LogText     LogType = "text"
	LogCommand  LogType = "command"
	LogPhoto    LogType = "photo"
	LogPDF      LogType = "pdf"
	LogDocument LogType = "document"
	LogAudio    LogType = "audio"
	LogVoice    LogType = "voice"
	LogVideo    LogType = "video"
)

// User is a Telegram user who has talked to the bot. IsActive turns false
// once a broadcast finds that the user blocked the bot or deleted the account.
type User struct {
	ID         int64     `db:"id"`
	FirstName  string    `db:"first_name"`
	Username   string    `db:"username"`
	IsActive   bool      `db:"is_active"`
	JoinedAt   time.Time `db:"joined_at"`
	LastSeenAt time.Time `db:"last_seen_at"`
}

// MessageLog records one inbound message. Content is truncated before write.
type MessageLog struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Type      LogType   `db:"type"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

// Stats summarizes the registry for the admin /stats command.
type Stats struct {
	TotalUsers  int
	ActiveUsers int
	TotalLogs   int
	LogsByType  map[LogType]int
}
