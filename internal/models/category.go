package models

// Category groups products. Categories nest through ParentID.
type Category struct {
	ID            string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name          string     `json:"name" gorm:"type:varchar(200);index"`
	Slug          string     `json:"slug" gorm:"type:varchar(200);uniqueIndex"`
	ParentID      *string    `json:"parent_id,omitempty" gorm:"type:varchar(36);index"`
	Subcategories []Category `json:"subcategories,omitempty" gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE"`
}
