package models

import "time"

// Event is one scheduled performance. CanonicalID is derived from the
// normalized title, date, venue, city and time and never changes.
type Event struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;comment:自增主键"`
	CanonicalID string    `gorm:"type:text;uniqueIndex;not null;comment:规范化身份哈希"`
	Title       string    `gorm:"type:text;not null;comment:演出标题"`
	Genre       string    `gorm:"type:text;index;not null;default:'Theatre';comment:类型"`
	Date        time.Time `gorm:"type:date;index;not null;comment:演出日期"`
	Time        *string   `gorm:"type:text;comment:开始时间HH:MM"`
	Venue       *string   `gorm:"type:text;comment:场地"`
	City        *string   `gorm:"type:text;comment:城市"`
	IsFree      bool      `gorm:"not null;default:false;comment:是否免费"`
	FreeReason  *string   `gorm:"type:text;comment:免费依据关键词"`
	IsKidsEvent bool      `gorm:"index;not null;default:false;comment:是否儿童演出"`
	Description *string   `gorm:"type:text;comment:描述"`
	ImageURL    *string   `gorm:"type:text;comment:图片链接"`
	TicketURL   *string   `gorm:"type:text;comment:购票链接"`
	Source      string    `gorm:"type:text;index;not null;comment:来源站点"`
	SourceURL   *string   `gorm:"type:text;comment:来源页面"`
	FirstSeenAt time.Time `gorm:"type:timestamptz;not null;comment:首次发现时间"`
	LastSeenAt  time.Time `gorm:"type:timestamptz;not null;comment:最近发现时间"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null;comment:更新时间"`
}

func (Event) TableName() string {
	return "events"
}
