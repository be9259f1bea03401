package repository

import (
	"time"

	json "github.com/goccy/go-json"
	"gorm.io/datatypes"

	"github.com/okian/adrec/internal/domain/model"
)

// AdRecord is the row shape of the ads table.
type AdRecord struct {
	ID             int64          `gorm:"primaryKey;autoIncrement"`
	TenantID       int64          `gorm:"not null;index"`
	Name           string         `gorm:"size:255;not null"`
	Content        string         `gorm:"type:text"`
	StartTime      time.Time      `gorm:"not null"`
	EndTime        time.Time      `gorm:"not null"`
	TargetAudience datatypes.JSON `gorm:"column:target_audience"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName pins the table name.
func (AdRecord) TableName() string { return "ads" }

// EventRecord is the row shape of the events table.
type EventRecord struct {
	ID         int64          `gorm:"primaryKey;autoIncrement"`
	TenantID   int64          `gorm:"not null;index"`
	AdID       int64          `gorm:"not null;index"`
	UserID     *int64         `gorm:"index"`
	EventType  string         `gorm:"size:64;not null"`
	Data       datatypes.JSON `gorm:"column:data"`
	OccurredAt time.Time      `gorm:"not null;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName pins the table name.
func (EventRecord) TableName() string { return "events" }

// audience is the JSON document stored in ads.target_audience.
type audience struct {
	Interests []string `json:"interests"`
}

// parseTags extracts interest tags. Malformed or missing documents yield no tags.
func parseTags(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var a audience
	if err := json.Unmarshal(raw, &a); err != nil || a.Interests == nil {
		return []string{}
	}
	return a.Interests
}

func encodeTags(tags []string) datatypes.JSON {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(audience{Interests: tags})
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

func (r *AdRecord) toModel() model.Ad {
	return model.Ad{
		ID:        r.ID,
		TenantID:  r.TenantID,
		Name:      r.Name,
		Content:   r.Content,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Tags:      parseTags(r.TargetAudience),
		Audience:  json.RawMessage(r.TargetAudience),
	}
}

func adRecordFrom(a model.Ad) AdRecord { //nolint:gocritic // hugeParam: Ad is passed by value across layers
	return AdRecord{
		ID:             a.ID,
		TenantID:       a.TenantID,
		Name:           a.Name,
		Content:        a.Content,
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
		TargetAudience: targetAudience(a),
	}
}

// targetAudience prefers the raw document over tags. An ad with neither
// stores NULL.
func targetAudience(a model.Ad) datatypes.JSON { //nolint:gocritic // hugeParam: Ad is passed by value across layers
	switch {
	case len(a.Audience) > 0:
		return datatypes.JSON(a.Audience)
	case a.Tags != nil:
		return encodeTags(a.Tags)
	default:
		return nil
	}
}

func (r *EventRecord) toModel() model.Event {
	return model.Event{
		ID:         r.ID,
		TenantID:   r.TenantID,
		AdID:       r.AdID,
		UserID:     r.UserID,
		Kind:       model.EventKind(r.EventType),
		OccurredAt: r.OccurredAt,
		Data:       r.Data,
	}
}

func eventRecordFrom(e model.Event) EventRecord { //nolint:gocritic // hugeParam: Event is passed by value across layers
	rec := EventRecord{
		ID:         e.ID,
		TenantID:   e.TenantID,
		AdID:       e.AdID,
		UserID:     e.UserID,
		EventType:  string(e.Kind),
		OccurredAt: e.OccurredAt,
	}
	if len(e.Data) > 0 {
		rec.Data = datatypes.JSON(e.Data)
	}
	return rec
}
