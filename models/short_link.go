package models

import "time"

// ShortLink maps a short trackable code to the original link embedded in a
// message. Allocated through the short-link service when a template
// references a link; clicks are recorded per code.
type ShortLink struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Code       string    `gorm:"size:64;not null;uniqueIndex:uk_short_links_code" json:"code"`
	RuleID     *uint     `gorm:"index:idx_short_links_rule_id" json:"rule_id,omitempty"`
	TrackingID *string   `gorm:"size:64;index:idx_short_links_tracking_id" json:"tracking_id,omitempty"`
	LongLink   string    `gorm:"type:text;not null" json:"long_link"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_short_links_created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for ShortLink
func (ShortLink) TableName() string { return "short_links" }

// ShortLinkClick records one click on a short link.
type ShortLinkClick struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:64;not null;index:idx_short_link_clicks_code" json:"code"`
	RuleID    *uint     `gorm:"index:idx_short_link_clicks_rule_id" json:"rule_id,omitempty"`
	UserAgent *string   `gorm:"type:text" json:"user_agent,omitempty"`
	IP        *string   `gorm:"size:64" json:"ip,omitempty"`
	ClickedAt time.Time `gorm:"not null;index:idx_short_link_clicks_clicked_at" json:"clicked_at"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for ShortLinkClick
func (ShortLinkClick) TableName() string { return "short_link_clicks" }

// ShortLinkFilter provides filter fields for repository queries
type ShortLinkFilter struct {
	ID            *uint
	Code          *string
	RuleID        *uint
	TrackingID    *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// ShortLinkClickFilter provides filter fields for repository queries
type ShortLinkClickFilter struct {
	ID           *uint
	Code         *string
	RuleID       *uint
	ClickedAfter *time.Time
}
