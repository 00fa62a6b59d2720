package models

import (
	"time"

	"gorm.io/datatypes"
)

// SourceRun records what one adapter produced during one refresh cycle.
type SourceRun struct {
	ID         uint64         `gorm:"primaryKey;autoIncrement;comment:自增主键"`
	CycleID    string         `gorm:"type:text;index;not null;comment:刷新周期ID"`
	Source     string         `gorm:"type:text;index;not null;comment:来源站点"`
	Parsed     int            `gorm:"not null;default:0;comment:解析条数"`
	Inserted   int            `gorm:"not null;default:0;comment:新增条数"`
	Updated    int            `gorm:"not null;default:0;comment:更新条数"`
	Skipped    int            `gorm:"not null;default:0;comment:跳过条数"`
	HTTPStatus int            `gorm:"not null;default:0;comment:最终HTTP状态码"`
	Blocked    bool           `gorm:"not null;default:false;comment:是否被拦截"`
	Error      *string        `gorm:"type:text;comment:错误信息"`
	DurationMs int64          `gorm:"not null;default:0;comment:耗时毫秒"`
	SkipJSON   datatypes.JSON `gorm:"type:jsonb;comment:跳过原因统计JSON"`
	SampleJSON datatypes.JSON `gorm:"type:jsonb;comment:样例事件JSON"`
	StartedAt  time.Time      `gorm:"type:timestamptz;not null;comment:开始时间"`
	CreatedAt  time.Time      `gorm:"type:timestamptz;index;not null;comment:写入时间"`
}

func (SourceRun) TableName() string {
	return "source_runs"
}
