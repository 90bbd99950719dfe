package medal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/koepon-app/koepon-backend/internal/platform/config"
	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"gorm.io/gorm"
)

var (
	ErrInsufficientBalance = errors.New("メダル残高が不足しています")
	ErrInvalidAmount       = errors.New("無効なメダル数が指定されました")
	ErrInvalidSource       = errors.New("無効なメダル獲得元が指定されました")
	ErrReservationState    = errors.New("メダルの予約状態が不正です")
)

// errDuplicateRef 标记一次幂等的重复入账，只在模块内部使用
var errDuplicateRef = errors.New("duplicate ref id")

// BalanceDTO 是余额查询返回给上层的数据包
type BalanceDTO struct {
	Total       int64
	Available   int64
	Used        int64
	Reserved    int64
	VTubers     map[string]VTuberBalanceDTO
	LastUpdated time.Time
}

type VTuberBalanceDTO struct {
	Balance     int64
	TotalEarned int64
	TotalUsed   int64
}

// GetBalance 返回用户的余额快照，优先读Redis缓存，未命中时回源数据库。
// 用户首次查询时会得到全零的默认余额（此时不落库，首笔交易时才创建余额行）。
func GetBalance(userID string) (*BalanceDTO, error) {
	if database.IsRedisHealthy() {
		cached, err := database.RDB.HGet(database.Ctx, BalanceCacheKey, userID).Result()
		if err == nil {
			var snap balanceSnapshot
			if json.Unmarshal([]byte(cached), &snap) == nil {
				return snapshotToDTO(snap), nil
			}
		}
	}

	dto, err := loadBalanceFromDB(userID)
	if err != nil {
		// 配置允许时退回默认余额，否则把错误交给调用方处理
		if config.Cfg != nil && config.Cfg.Medal.FallbackBalanceOnError {
			logger.S.Warnf("余额查询失败，按配置退回默认余额 user=%s: %v", userID, err)
			return &BalanceDTO{VTubers: map[string]VTuberBalanceDTO{}}, nil
		}
		return nil, err
	}

	refreshCache(userID)
	return dto, nil
}

// CheckSufficientBalance 是纯谓词：余额未加载或查询失败时返回false，不产生任何状态变化。
func CheckSufficientBalance(userID string, amount int64) bool {
	dto, err := GetBalance(userID)
	if err != nil || dto == nil {
		return false
	}
	return dto.Available >= amount
}

// EarnMedals 为用户入账amount枚勋章。
//
// amount <= 0 时记录警告并拒绝，不产生任何状态变化。
// refID上的唯一约束保证同一业务事件只入账一次：重复调用是无操作并返回nil。
func EarnMedals(userID, vtuberID string, amount int64, source, description, refID string) error {
	if amount <= 0 {
		logger.S.Warnf("拒绝非正数的勋章入账 user=%s amount=%d ref=%s", userID, amount, refID)
		return ErrInvalidAmount
	}
	if !ValidSource(source) {
		return ErrInvalidSource
	}
	if refID == "" {
		return errors.New("勋章入账缺少refID")
	}

	txUUID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("无法生成交易ID: %w", err)
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		record := MedalTransaction{
			UUID:        txUUID.String(),
			UserID:      userID,
			Type:        TypeEarned,
			Amount:      amount,
			Source:      source,
			Description: description,
			VTuberID:    vtuberID,
			RefID:       refID,
		}
		if err := tx.Create(&record).Error; err != nil {
			if database.IsDuplicateKeyError(err) {
				return errDuplicateRef
			}
			return fmt.Errorf("无法写入账本交易: %w", err)
		}

		if err := adjustBalance(tx, userID, amount, amount, 0, 0); err != nil {
			return err
		}
		if vtuberID != "" {
			if err := adjustVTuberBalance(tx, userID, vtuberID, amount, amount, 0); err != nil {
				return err
			}
		}
		return nil
	})

	if errors.Is(err, errDuplicateRef) {
		// 同一业务事件的重复入账，幂等返回
		return nil
	}
	if err != nil {
		return err
	}

	refreshCache(userID)
	return nil
}

// Reserve 为一次两阶段消费冻结cost枚勋章。
// 可用余额不足时返回ErrInsufficientBalance；成功时返回预留ID。
func Reserve(userID, vtuberID string, cost int64) (string, error) {
	if cost <= 0 {
		return "", ErrInvalidAmount
	}

	resUUID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("无法生成预约ID: %w", err)
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		// 原子条件更新，余额不足时不会命中任何行
		res := tx.Model(&MedalBalance{}).
			Where("user_id = ? AND available >= ?", userID, cost).
			Updates(map[string]interface{}{
				"available": gorm.Expr("available - ?", cost),
				"reserved":  gorm.Expr("reserved + ?", cost),
			})
		if res.Error != nil {
			return fmt.Errorf("无法冻结勋章: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientBalance
		}

		if vtuberID != "" {
			res = tx.Model(&VTuberMedalBalance{}).
				Where("user_id = ? AND vtuber_id = ? AND balance >= ?", userID, vtuberID, cost).
				Update("balance", gorm.Expr("balance - ?", cost))
			if res.Error != nil {
				return fmt.Errorf("无法冻结VTuber子余额: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrInsufficientBalance
			}
		}

		reservation := MedalReservation{
			UUID:     resUUID.String(),
			UserID:   userID,
			VTuberID: vtuberID,
			Cost:     cost,
			Status:   ReservationPending,
		}
		if err := tx.Create(&reservation).Error; err != nil {
			return fmt.Errorf("无法创建勋章预约: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	refreshCache(userID)
	return resUUID.String(), nil
}

// CommitReservation 提交一次预留：勋章正式消费，写入账本交易。
// refID应指向触发消费的业务事件（例如兑换记录ID）。
func CommitReservation(reservationID, source, description, refID string) error {
	if !ValidSource(source) {
		return ErrInvalidSource
	}

	txUUID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("无法生成交易ID: %w", err)
	}

	var userID string
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		reservation, err := takeReservation(tx, reservationID, ReservationCommitted)
		if err != nil {
			return err
		}
		userID = reservation.UserID

		record := MedalTransaction{
			UUID:        txUUID.String(),
			UserID:      reservation.UserID,
			Type:        TypeUsed,
			Amount:      reservation.Cost,
			Source:      source,
			Description: description,
			VTuberID:    reservation.VTuberID,
			RefID:       refID,
		}
		if err := tx.Create(&record).Error; err != nil {
			if database.IsDuplicateKeyError(err) {
				return errDuplicateRef
			}
			return fmt.Errorf("无法写入账本交易: %w", err)
		}

		// 预留转为已消费：total与available在Reserve阶段后合计减少cost，used增加cost
		if err := adjustBalance(tx, reservation.UserID, -reservation.Cost, 0, reservation.Cost, -reservation.Cost); err != nil {
			return err
		}
		if reservation.VTuberID != "" {
			if err := adjustVTuberBalance(tx, reservation.UserID, reservation.VTuberID, 0, 0, reservation.Cost); err != nil {
				return err
			}
		}
		return nil
	})

	if errors.Is(err, errDuplicateRef) {
		return nil
	}
	if err != nil {
		return err
	}

	refreshCache(userID)
	return nil
}

// ReleaseReservation 释放一次预留，冻结的勋章回到可用余额。
// 下游业务（兑换等）失败时调用，保证用户不会凭空损失勋章。
func ReleaseReservation(reservationID string) error {
	var userID string
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		reservation, err := takeReservation(tx, reservationID, ReservationReleased)
		if err != nil {
			return err
		}
		userID = reservation.UserID

		if err := adjustBalance(tx, reservation.UserID, 0, reservation.Cost, 0, -reservation.Cost); err != nil {
			return err
		}
		if reservation.VTuberID != "" {
			if err := adjustVTuberBalance(tx, reservation.UserID, reservation.VTuberID, reservation.Cost, 0, 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	refreshCache(userID)
	return nil
}

// takeReservation 以CAS方式把一条pending预留推进到目标状态并返回它。
func takeReservation(tx *gorm.DB, reservationID, targetStatus string) (*MedalReservation, error) {
	var reservation MedalReservation
	if err := tx.Where("uuid = ?", reservationID).First(&reservation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationState
		}
		return nil, fmt.Errorf("无法读取勋章预约: %w", err)
	}

	res := tx.Model(&MedalReservation{}).
		Where("uuid = ? AND status = ?", reservationID, ReservationPending).
		Update("status", targetStatus)
	if res.Error != nil {
		return nil, fmt.Errorf("无法更新勋章预约状态: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrReservationState
	}
	return &reservation, nil
}

// adjustBalance 对用户余额行做增量更新，行不存在时先创建。
// 各增量的符号由调用方保证与口径一致。
func adjustBalance(tx *gorm.DB, userID string, totalDelta, availableDelta, usedDelta, reservedDelta int64) error {
	res := tx.Model(&MedalBalance{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"total":     gorm.Expr("total + ?", totalDelta),
			"available": gorm.Expr("available + ?", availableDelta),
			"used":      gorm.Expr("used + ?", usedDelta),
			"reserved":  gorm.Expr("reserved + ?", reservedDelta),
		})
	if res.Error != nil {
		return fmt.Errorf("无法更新勋章余额: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		bal := MedalBalance{
			UserID:    userID,
			Total:     totalDelta,
			Available: availableDelta,
			Used:      usedDelta,
			Reserved:  reservedDelta,
		}
		if err := tx.Create(&bal).Error; err != nil {
			return fmt.Errorf("无法创建勋章余额行: %w", err)
		}
	}
	return nil
}

func adjustVTuberBalance(tx *gorm.DB, userID, vtuberID string, balanceDelta, earnedDelta, usedDelta int64) error {
	res := tx.Model(&VTuberMedalBalance{}).
		Where("user_id = ? AND vtuber_id = ?", userID, vtuberID).
		Updates(map[string]interface{}{
			"balance":      gorm.Expr("balance + ?", balanceDelta),
			"total_earned": gorm.Expr("total_earned + ?", earnedDelta),
			"total_used":   gorm.Expr("total_used + ?", usedDelta),
		})
	if res.Error != nil {
		return fmt.Errorf("无法更新VTuber子余额: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		sub := VTuberMedalBalance{
			UserID:      userID,
			VTuberID:    vtuberID,
			Balance:     balanceDelta,
			TotalEarned: earnedDelta,
			TotalUsed:   usedDelta,
		}
		if err := tx.Create(&sub).Error; err != nil {
			return fmt.Errorf("无法创建VTuber子余额行: %w", err)
		}
	}
	return nil
}

// loadBalanceFromDB 从数据库组装余额快照。
func loadBalanceFromDB(userID string) (*BalanceDTO, error) {
	var bal MedalBalance
	err := database.DB.Where("user_id = ?", userID).First(&bal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &BalanceDTO{VTubers: map[string]VTuberBalanceDTO{}}, nil
		}
		return nil, fmt.Errorf("无法读取勋章余额: %w", err)
	}

	var subs []VTuberMedalBalance
	if err := database.DB.Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("无法读取VTuber子余额: %w", err)
	}

	dto := &BalanceDTO{
		Total:       bal.Total,
		Available:   bal.Available,
		Used:        bal.Used,
		Reserved:    bal.Reserved,
		VTubers:     make(map[string]VTuberBalanceDTO, len(subs)),
		LastUpdated: bal.UpdatedAt,
	}
	for _, sub := range subs {
		dto.VTubers[sub.VTuberID] = VTuberBalanceDTO{
			Balance:     sub.Balance,
			TotalEarned: sub.TotalEarned,
			TotalUsed:   sub.TotalUsed,
		}
	}
	return dto, nil
}

// refreshCache 在账本变更后更新Redis余额缓存。
// 缓存只是加速层：任何失败都降级为删除缓存项，绝不留下过期快照。
func refreshCache(userID string) {
	if userID == "" || !database.IsRedisHealthy() {
		return
	}

	dto, err := loadBalanceFromDB(userID)
	if err != nil {
		database.RDB.HDel(database.Ctx, BalanceCacheKey, userID)
		return
	}

	snap := balanceSnapshot{
		Total:       dto.Total,
		Available:   dto.Available,
		Used:        dto.Used,
		Reserved:    dto.Reserved,
		VTubers:     make(map[string]vtuberSnapshot, len(dto.VTubers)),
		LastUpdated: dto.LastUpdated.Unix(),
	}
	for id, sub := range dto.VTubers {
		snap.VTubers[id] = vtuberSnapshot{
			Balance:     sub.Balance,
			TotalEarned: sub.TotalEarned,
			TotalUsed:   sub.TotalUsed,
		}
	}

	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := database.RDB.HSet(database.Ctx, BalanceCacheKey, userID, snapJSON).Err(); err != nil {
		database.RDB.HDel(database.Ctx, BalanceCacheKey, userID)
	}
}

func snapshotToDTO(snap balanceSnapshot) *BalanceDTO {
	dto := &BalanceDTO{
		Total:       snap.Total,
		Available:   snap.Available,
		Used:        snap.Used,
		Reserved:    snap.Reserved,
		VTubers:     make(map[string]VTuberBalanceDTO, len(snap.VTubers)),
		LastUpdated: time.Unix(snap.LastUpdated, 0),
	}
	for id, sub := range snap.VTubers {
		dto.VTubers[id] = VTuberBalanceDTO{
			Balance:     sub.Balance,
			TotalEarned: sub.TotalEarned,
			TotalUsed:   sub.TotalUsed,
		}
	}
	return dto
}
