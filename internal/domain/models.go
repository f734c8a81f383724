package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Application represents one admission attempt by one user in one guild.
//
// Invariants (enforced by the repository layer inside transactions):
//   - at most one Application per (guild_id, user_id) with status "draft"
//   - at most one with an active status (submitted or needs_info)
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - GuildID / UserID: platform snowflake identifiers; composite index.
//   - Status: lifecycle state, see Status.
//   - SubmittedAt / ResolvedAt: set by the intake and decision engines.
//   - ResolverID / ResolutionReason: populated by terminal decisions,
//     cleared again by a need_info transition.
type Application struct {
	ID               string     `json:"id"                gorm:"type:char(36);primaryKey"`
	GuildID          string     `json:"guild_id"          gorm:"type:varchar(32);not null;index:idx_guild_user,priority:1"`
	UserID           string     `json:"user_id"           gorm:"type:varchar(32);not null;index:idx_guild_user,priority:2"`
	Status           Status     `json:"status"            gorm:"type:varchar(16);not null;default:'draft';index"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	ResolverID       *string    `json:"resolver_id,omitempty"       gorm:"type:varchar(32)"`
	ResolutionReason *string    `json:"resolution_reason,omitempty" gorm:"type:varchar(500)"`
}

// TableName returns the database table name for Application.
func (Application) TableName() string { return "applications" }

// AnswerRecord is one question's response within one Application. The prompt
// is snapshotted at write time so later catalog edits do not rewrite history.
// Rows are upserted on (app_id, q_index); resubmission overwrites in place
// and refreshes WrittenAt.
type AnswerRecord struct {
	AppID     string    `json:"app_id"    gorm:"type:char(36);not null;primaryKey;priority:1"`
	QIndex    int       `json:"q_index"   gorm:"not null;primaryKey;priority:2"`
	Question  string    `json:"question"  gorm:"type:varchar(300);not null"`
	Answer    string    `json:"answer"    gorm:"type:varchar(1000);not null"`
	WrittenAt time.Time `json:"written_at"`

	// Application is the owning row. Answers are cascade-deleted with it.
	Application Application `json:"-" gorm:"foreignKey:AppID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AnswerRecord.
func (AnswerRecord) TableName() string { return "answer_records" }

// ReviewAction is an append-only log entry of one moderator decision or
// auxiliary action. The row is inserted inside the transition transaction;
// side-effect outcome metadata is attached afterwards by a separate update,
// so a recorded decision never depends on its consequences landing.
type ReviewAction struct {
	ID          int64                          `json:"id"           gorm:"primaryKey;autoIncrement"`
	AppID       string                         `json:"app_id"       gorm:"type:char(36);not null;index"`
	ModeratorID string                         `json:"moderator_id" gorm:"type:varchar(32);not null"`
	Action      DecisionAction                 `json:"action"       gorm:"type:varchar(20);not null"`
	Reason      *string                        `json:"reason,omitempty" gorm:"type:varchar(500)"`
	Meta        datatypes.JSONType[ActionMeta] `json:"meta"`
	CreatedAt   time.Time                      `json:"created_at"`

	Application Application `json:"-" gorm:"foreignKey:AppID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ReviewAction.
func (ReviewAction) TableName() string { return "review_actions" }

// GuildConfig holds per-guild settings. Read-mostly; served through a
// TTL cache that is invalidated on write.
type GuildConfig struct {
	GuildID                string    `json:"guild_id"                  gorm:"type:varchar(32);primaryKey"`
	ReviewChannelID        string    `json:"review_channel_id"         gorm:"type:varchar(32)"`
	GateChannelID          string    `json:"gate_channel_id"           gorm:"type:varchar(32)"`
	UnverifiedChannelID    string    `json:"unverified_channel_id"     gorm:"type:varchar(32)"`
	GeneralChannelID       string    `json:"general_channel_id"        gorm:"type:varchar(32)"`
	AcceptedRoleID         string    `json:"accepted_role_id"          gorm:"type:varchar(32)"`
	ReviewerRoleID         string    `json:"reviewer_role_id"          gorm:"type:varchar(32)"`
	ImageSearchURLTemplate string    `json:"image_search_url_template" gorm:"type:varchar(500);not null;default:'https://lens.google.com/uploadbyurl?url={avatarUrl}'"`
	AvatarScanEnabled      bool      `json:"avatar_scan_enabled"       gorm:"not null;default:false"`
	AvatarNSFWThreshold    float64   `json:"avatar_nsfw_threshold"     gorm:"not null;default:0.6"`
	AvatarEdgeThreshold    float64   `json:"avatar_edge_threshold"     gorm:"not null;default:0.18"`
	ReapplyCooldownHours   int       `json:"reapply_cooldown_hours"    gorm:"not null;default:24"`
	MinAccountAgeHours     int       `json:"min_account_age_hours"     gorm:"not null;default:0"`
	MinJoinAgeHours        int       `json:"min_join_age_hours"        gorm:"not null;default:0"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// TableName returns the database table name for GuildConfig.
func (GuildConfig) TableName() string { return "guild_configs" }

// GuildQuestion is one entry of a guild's ordered intake catalog.
type GuildQuestion struct {
	GuildID  string `json:"guild_id" gorm:"type:varchar(32);not null;primaryKey;priority:1"`
	QIndex   int    `json:"q_index"  gorm:"not null;primaryKey;priority:2"`
	Prompt   string `json:"prompt"   gorm:"type:varchar(300);not null"`
	Required bool   `json:"required" gorm:"not null;default:true"`
}

// TableName returns the database table name for GuildQuestion.
func (GuildQuestion) TableName() string { return "guild_questions" }

// ThreadBridge tracks an open follow-up discussion thread opened for a
// needs_info decision, keyed by (guild, user). At most one bridge per pair is
// in state "open"; repeated need_info clicks reuse it.
type ThreadBridge struct {
	ID        int64     `json:"id"        gorm:"primaryKey;autoIncrement"`
	GuildID   string    `json:"guild_id"  gorm:"type:varchar(32);not null;index:idx_bridge_guild_user,priority:1"`
	UserID    string    `json:"user_id"   gorm:"type:varchar(32);not null;index:idx_bridge_guild_user,priority:2"`
	ThreadID  string    `json:"thread_id" gorm:"type:varchar(32);not null"`
	State     string    `json:"state"     gorm:"type:varchar(8);not null;default:'open';check:state IN ('open','closed')"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ThreadBridge.
func (ThreadBridge) TableName() string { return "thread_bridges" }

// ReviewCard maps an application to its single live decision card message.
// Publishing edits the referenced message in place when it still exists and
// re-creates it (updating this mapping) when it was deleted upstream.
type ReviewCard struct {
	AppID     string    `json:"app_id"     gorm:"type:char(36);primaryKey"`
	ChannelID string    `json:"channel_id" gorm:"type:varchar(32);not null"`
	MessageID string    `json:"message_id" gorm:"type:varchar(32);not null"`
	UpdatedAt time.Time `json:"updated_at"`

	Application Application `json:"-" gorm:"foreignKey:AppID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ReviewCard.
func (ReviewCard) TableName() string { return "review_cards" }

// AvatarScan is the stored result of the avatar risk classifier for one
// application. Upserted; a re-scan overwrites in place.
type AvatarScan struct {
	AppID         string    `json:"app_id"          gorm:"type:char(36);primaryKey"`
	AvatarURL     string    `json:"avatar_url"      gorm:"type:varchar(500);not null"`
	NSFWScore     *float64  `json:"nsfw_score,omitempty"`
	SkinEdgeScore float64   `json:"skin_edge_score" gorm:"not null;default:0"`
	Flagged       bool      `json:"flagged"         gorm:"not null;default:false"`
	Reason        string    `json:"reason"          gorm:"type:varchar(16);not null;default:'none'"`
	ScannedAt     time.Time `json:"scanned_at"`

	Application Application `json:"-" gorm:"foreignKey:AppID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AvatarScan.
func (AvatarScan) TableName() string { return "avatar_scans" }
