package models

import (
	"strconv"
	"time"
)

// BusinessSettings holds the template variable values substituted into
// message bodies (business name, phone, hours, booking link, review count).
// One row per business; the engine only reads it.
type BusinessSettings struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	BusinessName string     `gorm:"size:255;not null" json:"business_name"`
	Phone        *string    `gorm:"size:20" json:"phone,omitempty"`
	Hours        *string    `gorm:"size:255" json:"hours,omitempty"`
	BookingLink  *string    `gorm:"type:text" json:"booking_link,omitempty"`
	ReviewLink   *string    `gorm:"type:text" json:"review_link,omitempty"`
	ReviewCount  *int       `json:"review_count,omitempty"`
	CreatedAt    time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (BusinessSettings) TableName() string {
	return "business_settings"
}

// TemplateVars flattens the settings into template variables. Absent
// optional fields are omitted so templates can drop their lines.
func (s *BusinessSettings) TemplateVars() map[string]string {
	vars := map[string]string{
		"business_name": s.BusinessName,
	}
	if s.Phone != nil {
		vars["business_phone"] = *s.Phone
	}
	if s.Hours != nil {
		vars["business_hours"] = *s.Hours
	}
	if s.BookingLink != nil {
		vars["booking_link"] = *s.BookingLink
	}
	if s.ReviewLink != nil {
		vars["review_link"] = *s.ReviewLink
	}
	if s.ReviewCount != nil {
		vars["review_count"] = strconv.Itoa(*s.ReviewCount)
	}
	return vars
}

// BusinessSettingsFilter provides filter fields for repository queries
type BusinessSettingsFilter struct {
	ID *uint
}
