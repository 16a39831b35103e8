package models

import "time"

// Post is a single blog entry. AuthorID never changes after creation.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	PubDate   time.Time `gorm:"column:pub_date;autoCreateTime;index" json:"pub_date"`
	Image     string    `gorm:"size:255" json:"image,omitempty"`
	ImageWebP string    `gorm:"column:image_webp;size:255" json:"image_webp,omitempty"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	GroupID   *uint     `gorm:"index" json:"group_id,omitempty"`
	Group     *Group    `gorm:"foreignKey:GroupID;constraint:OnDelete:SET NULL" json:"group,omitempty"`
	// CommentsCount is not persisted; filled in by the detail view.
	CommentsCount int `gorm:"-" json:"comments_count,omitempty"`
}

func (p Post) String() string {
	return p.Text
}
