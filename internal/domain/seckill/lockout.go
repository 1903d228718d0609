package seckill

import "time"

// DefaultLockoutWindow 开场前禁止结构性修改的时长
const DefaultLockoutWindow = 30 * time.Minute

// LockoutGuard 场次锁定窗口校验
// 场次在开场前会被预热到缓存，锁定窗口内的修改会让缓存与数据库不一致。
// 所有修改场次及其商品的操作，都必须在写库之前调用Check。
type LockoutGuard struct {
	window time.Duration
}

// NewLockoutGuard 创建校验器，window<=0时使用默认30分钟
func NewLockoutGuard(window time.Duration) LockoutGuard {
	if window <= 0 {
		window = DefaultLockoutWindow
	}
	return LockoutGuard{window: window}
}

// Window 锁定窗口时长
func (g LockoutGuard) Window() time.Duration { return g.window }

// Check 校验场次当前是否允许修改
//   - 开始时间在未来且距开始<=window: ErrSessionLocked
//   - 已过开始时间且动态状态为进行中: ErrSessionActive
func (g LockoutGuard) Check(s *Session, now time.Time) error {
	until := s.Period().UntilStart(now)
	if until > 0 {
		if until <= g.window {
			return ErrSessionLocked
		}
		return nil
	}
	if s.CalculateDynamicStatus(now) == SessionActive {
		return ErrSessionActive
	}
	return nil
}

// CheckPeriod 校验一个新的时间窗口不会落在锁定窗口内（创建场次或修改开始时间）
func (g LockoutGuard) CheckPeriod(p SessionPeriod, now time.Time) error {
	until := p.UntilStart(now)
	if until <= g.window {
		return ErrSessionLocked
	}
	return nil
}

// IsLocked Check的布尔版本
func (g LockoutGuard) IsLocked(s *Session, now time.Time) bool {
	return g.Check(s, now) != nil
}
