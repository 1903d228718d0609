package seckill

import "time"

// SessionPeriod 场次时间窗口，左闭右开 [start, end)
type SessionPeriod struct {
	start time.Time
	end   time.Time
}

// NewSessionPeriod 创建时间窗口，start必须早于end
func NewSessionPeriod(start, end time.Time) (SessionPeriod, error) {
	if !start.Before(end) {
		return SessionPeriod{}, ErrInvalidPeriod
	}
	return SessionPeriod{start: start, end: end}, nil
}

func (p SessionPeriod) Start() time.Time { return p.start }

func (p SessionPeriod) End() time.Time { return p.end }

// IsPending 尚未开始
func (p SessionPeriod) IsPending(now time.Time) bool {
	return now.Before(p.start)
}

// IsActive 售卖窗口内
func (p SessionPeriod) IsActive(now time.Time) bool {
	return !now.Before(p.start) && now.Before(p.end)
}

// IsEnded 已结束
func (p SessionPeriod) IsEnded(now time.Time) bool {
	return !now.Before(p.end)
}

// UntilStart 距离开始的时长，已开始返回值<=0
func (p SessionPeriod) UntilStart(now time.Time) time.Duration {
	return p.start.Sub(now)
}
