package gacha

import (
	"errors"
	"fmt"
	"math/rand"
)

var (
	ErrMachineNotFound = errors.New("指定されたガチャが見つかりません")
	ErrMachineInactive = errors.New("このガチャは現在利用できません")
	ErrEmptyPool       = errors.New("ガチャの賞品が設定されていません")
)

// DrawnItem 是一次抽取得到的单个奖品
type DrawnItem struct {
	ID     string
	Name   string
	Rarity string
}

// PullCount 返回一种价格类型对应的抽取次数。
func PullCount(pullType string) (int, error) {
	switch pullType {
	case PullTypeSingle:
		return 1, nil
	case PullTypeTen:
		return 10, nil
	default:
		return 0, fmt.Errorf("无效的抽取类型: %s", pullType)
	}
}

// PriceFor 返回一台抽选机在指定价格类型下的金额（日元）。
func PriceFor(info MachineInfo, pullType string) (int64, error) {
	switch pullType {
	case PullTypeSingle:
		return info.PriceSingleJPY, nil
	case PullTypeTen:
		return info.PriceTenJPY, nil
	default:
		return 0, fmt.Errorf("无效的抽取类型: %s", pullType)
	}
}

// DrawItems 对指定抽选机执行n次独立的加权随机抽取。
// 抽取只读内存仓库，不接触数据库；各次抽取相互独立（放回抽样）。
func DrawItems(gachaUUID string, n int) ([]DrawnItem, error) {
	if n <= 0 {
		return nil, fmt.Errorf("抽取次数必须为正数: %d", n)
	}

	globalRepository.rwLock.RLock()
	defer globalRepository.rwLock.RUnlock()

	m, ok := globalRepository.machines[gachaUUID]
	if !ok {
		return nil, ErrMachineNotFound
	}
	if !m.info.Active {
		return nil, ErrMachineInactive
	}
	if m.picker == nil || m.picker.TotalWeight() <= 0 {
		return nil, ErrEmptyPool
	}

	total := m.picker.TotalWeight()
	results := make([]DrawnItem, 0, n)
	for i := 0; i < n; i++ {
		index, err := m.picker.Find(rand.Float64() * total)
		if err != nil {
			return nil, fmt.Errorf("抽样失败: %w", err)
		}
		item := m.items[index]
		results = append(results, DrawnItem{
			ID:     item.UUID,
			Name:   item.Name,
			Rarity: item.Rarity,
		})
	}
	return results, nil
}
