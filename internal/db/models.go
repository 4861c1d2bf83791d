package db

import "time"

// Thesis maps culldron.theses. One row per ingested post.
type Thesis struct {
	ThesisID      int64      `gorm:"column:thesis_id;primaryKey;autoIncrement"`
	ThesisUUID    string     `gorm:"column:thesis_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ThemeID       string     `gorm:"column:theme_id;type:text;not null"`
	ThesisText    string     `gorm:"column:thesis_text;type:text;not null"`
	PostTitle     string     `gorm:"column:post_title;type:text;not null;default:''"`
	PostURL       string     `gorm:"column:post_url;type:text;not null"`
	PublishedAt   *time.Time `gorm:"column:published_at;type:timestamptz"`
	IngestedAt    time.Time  `gorm:"column:ingested_at;type:timestamptz;not null;default:now()"`
	Embedding     string     `gorm:"column:embedding;type:vector;not null"`
	Language      string     `gorm:"column:language;type:text;not null;default:und"`
	FeedURL       *string    `gorm:"column:feed_url;type:text"`
	SentenceCount int        `gorm:"column:sentence_count;type:integer;not null;default:0"`
}

func (Thesis) TableName() string { return "culldron.theses" }

// IngestRun maps culldron.ingest_runs.
type IngestRun struct {
	RunID         int64      `gorm:"column:run_id;primaryKey;autoIncrement"`
	IngestRunUUID string     `gorm:"column:ingest_run_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	FeedURL       string     `gorm:"column:feed_url;type:text;not null"`
	Status        string     `gorm:"column:status;type:text;not null;default:running"`
	ItemsTotal    int        `gorm:"column:items_total;type:integer;not null;default:0"`
	ItemsIngested int        `gorm:"column:items_ingested;type:integer;not null;default:0"`
	ItemsSkipped  int        `gorm:"column:items_skipped;type:integer;not null;default:0"`
	ErrorMessage  *string    `gorm:"column:error_message;type:text"`
	StartedAt     time.Time  `gorm:"column:started_at;type:timestamptz;not null;default:now()"`
	FinishedAt    *time.Time `gorm:"column:finished_at;type:timestamptz"`
}

func (IngestRun) TableName() string { return "culldron.ingest_runs" }

func autoMigrateModels() []any {
	return []any{
		&Thesis{},
		&IngestRun{},
	}
}
