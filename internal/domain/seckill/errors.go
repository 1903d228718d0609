package seckill

import (
	apperrors "github.com/xiebiao/seckill/pkg/errors"
)

// 资源不存在
var (
	ErrActivityNotFound = apperrors.New(apperrors.ErrCodeActivityNotFound, "秒杀活动不存在")
	ErrSessionNotFound  = apperrors.New(apperrors.ErrCodeSessionNotFound, "秒杀场次不存在")
	ErrProductNotFound  = apperrors.New(apperrors.ErrCodeProductNotFound, "秒杀商品不存在")
)

// 参数校验
var (
	ErrInvalidQuantity = apperrors.New(apperrors.ErrCodeInvalidParams, "数量必须大于0")
	ErrInvalidStock    = apperrors.New(apperrors.ErrCodeInvalidParams, "库存数量不能为负数，且不能小于已售数量")
	ErrInvalidPeriod   = apperrors.New(apperrors.ErrCodeInvalidParams, "场次开始时间必须早于结束时间")
	ErrInvalidRules    = apperrors.New(apperrors.ErrCodeInvalidParams, "每人限购数量和场次总库存必须大于0")
	ErrInvalidPrice    = apperrors.New(apperrors.ErrCodeInvalidParams, "原价必须大于0，秒杀价必须大于0且不高于原价")
	ErrInvalidTitle    = apperrors.New(apperrors.ErrCodeInvalidParams, "活动标题不能为空")
	ErrInvalidLimit    = apperrors.New(apperrors.ErrCodeInvalidParams, "商品限购数量必须大于0且不超过场次限购")
)

// 购买结果（高频的正常负面结果，不是系统故障）
var (
	ErrInsufficientStock     = apperrors.New(apperrors.ErrCodeInsufficientStock, "库存不足")
	ErrPurchaseLimitExceeded = apperrors.New(apperrors.ErrCodePurchaseLimitExceeded, "超过每人限购数量")
	ErrSessionNotOnSale      = apperrors.New(apperrors.ErrCodeSessionNotOnSale, "场次不在售卖时间内")
	ErrProductNotOnSale      = apperrors.New(apperrors.ErrCodeSessionNotOnSale, "秒杀商品未启用")
	ErrActivityNotOnSale     = apperrors.New(apperrors.ErrCodeSessionNotOnSale, "秒杀活动未启用或已关闭")
)

// 活动生命周期规则
var (
	ErrActivityNotEditable    = apperrors.New(apperrors.ErrCodeRuleViolation, "活动进行中或已结束，不允许编辑")
	ErrActivityNotDeletable   = apperrors.New(apperrors.ErrCodeRuleViolation, "活动进行中，不允许删除")
	ErrActivityHasSessions    = apperrors.New(apperrors.ErrCodeRuleViolation, "活动下存在场次，不允许删除")
	ErrActivityNotCancellable = apperrors.New(apperrors.ErrCodeRuleViolation, "活动已结束或已取消，不允许取消")
	ErrActivityNotEnableable  = apperrors.New(apperrors.ErrCodeRuleViolation, "活动已取消或已结束，不允许启用")
	ErrActivityNotStartable   = apperrors.New(apperrors.ErrCodeRuleViolation, "只有已启用且未开始的活动才能开始")
	ErrActivityAlreadyEnded   = apperrors.New(apperrors.ErrCodeRuleViolation, "活动已结束")
	ErrActivityClosed         = apperrors.New(apperrors.ErrCodeRuleViolation, "活动已结束或已取消，不允许添加场次")
)

// 场次生命周期规则
var (
	ErrSessionNotEditable    = apperrors.New(apperrors.ErrCodeRuleViolation, "场次进行中或已结束，不允许编辑")
	ErrSessionNotDeletable   = apperrors.New(apperrors.ErrCodeRuleViolation, "场次进行中或已有销售记录，不允许删除")
	ErrSessionNotCancellable = apperrors.New(apperrors.ErrCodeRuleViolation, "场次已结束或已取消，不允许取消")
	ErrSessionNotEnableable  = apperrors.New(apperrors.ErrCodeRuleViolation, "场次已取消或已结束，不允许启用")
	ErrSessionNotStartable   = apperrors.New(apperrors.ErrCodeRuleViolation, "只有已启用且未开始的场次才能开始")
	ErrSessionAlreadyEnded   = apperrors.New(apperrors.ErrCodeRuleViolation, "场次已结束")
	ErrSessionCapacity       = apperrors.New(apperrors.ErrCodeRuleViolation, "场次内商品库存总和超过场次总库存")
)

// 锁定窗口
var (
	ErrSessionLocked = apperrors.New(apperrors.ErrCodeSessionLocked, "场次即将开始（锁定窗口内），不允许修改")
	ErrSessionActive = apperrors.New(apperrors.ErrCodeSessionLocked, "场次正在进行中，不允许修改")
)

// 商品规则
var (
	ErrSkuDuplicate       = apperrors.New(apperrors.ErrCodeDuplicateEntry, "该场次已存在相同SKU的秒杀商品")
	ErrProductHasSales    = apperrors.New(apperrors.ErrCodeRuleViolation, "秒杀商品已有销售记录，不允许删除")
	ErrProductSoldOut     = apperrors.New(apperrors.ErrCodeRuleViolation, "秒杀商品已售罄，不允许启用")
	ErrProductNotEditable = apperrors.New(apperrors.ErrCodeRuleViolation, "所属场次进行中或已结束，不允许修改商品")
)
