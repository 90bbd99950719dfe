package gacha

import (
	"fmt"
	"sync"

	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/pkg/weighted"
)

// ItemInfo 持有奖品的静态数据，启动时加载到内存
type ItemInfo struct {
	UUID   string
	Name   string
	Rarity string
	Weight float64
}

// MachineInfo 持有抽选机的静态数据
type MachineInfo struct {
	UUID           string
	VTuberID       string
	Name           string
	Description    string
	PriceSingleJPY int64
	PriceTenJPY    int64
	MedalsPerDraw  int64
	Active         bool
}

// machine 是单台抽选机的内存视图：静态信息、奖池和抽样器
type machine struct {
	info   MachineInfo
	items  []ItemInfo
	picker *weighted.Picker
}

// repository 是gacha模块的中央数据仓库。
// 抽取热路径只读内存数据，不接触数据库；管理端修改奖池后整机重载。
type repository struct {
	machines map[string]*machine
	rwLock   sync.RWMutex
}

var globalRepository = &repository{machines: make(map[string]*machine)}

// InitializeRepository 从数据库全量加载抽选机与奖池，构建内存仓库。
// 应在应用启动时调用一次；运行期通过ReloadMachine做单机热更新。
func InitializeRepository() error {
	var gachasFromDB []Gacha
	if err := database.DB.Order("id asc").Find(&gachasFromDB).Error; err != nil {
		return fmt.Errorf("无法从数据库加载抽选机: %w", err)
	}

	machines := make(map[string]*machine, len(gachasFromDB))
	for _, g := range gachasFromDB {
		m, err := buildMachine(g)
		if err != nil {
			return err
		}
		machines[g.UUID] = m
	}

	globalRepository.rwLock.Lock()
	globalRepository.machines = machines
	globalRepository.rwLock.Unlock()

	return nil
}

// ReloadMachine 重新加载单台抽选机的内存视图，供管理端修改后调用。
func ReloadMachine(gachaUUID string) error {
	var g Gacha
	if err := database.DB.Where("uuid = ?", gachaUUID).First(&g).Error; err != nil {
		return fmt.Errorf("无法加载抽选机 %s: %w", gachaUUID, err)
	}
	m, err := buildMachine(g)
	if err != nil {
		return err
	}

	globalRepository.rwLock.Lock()
	globalRepository.machines[gachaUUID] = m
	globalRepository.rwLock.Unlock()
	return nil
}

func buildMachine(g Gacha) (*machine, error) {
	var itemsFromDB []Item
	if err := database.DB.Where("gacha_id = ?", g.UUID).Order("id asc").Find(&itemsFromDB).Error; err != nil {
		return nil, fmt.Errorf("无法加载抽选机 %s 的奖池: %w", g.UUID, err)
	}

	items := make([]ItemInfo, len(itemsFromDB))
	weights := make([]float64, len(itemsFromDB))
	for i, it := range itemsFromDB {
		items[i] = ItemInfo{
			UUID:   it.UUID,
			Name:   it.Name,
			Rarity: it.Rarity,
			Weight: it.Weight,
		}
		weights[i] = it.Weight
	}

	var picker *weighted.Picker
	if len(weights) > 0 {
		p, err := weighted.NewPickerFromWeights(weights)
		if err != nil {
			return nil, fmt.Errorf("无法为抽选机 %s 构建抽样器: %w", g.UUID, err)
		}
		picker = p
	}

	return &machine{
		info: MachineInfo{
			UUID:           g.UUID,
			VTuberID:       g.VTuberID,
			Name:           g.Name,
			Description:    g.Description,
			PriceSingleJPY: g.PriceSingleJPY,
			PriceTenJPY:    g.PriceTenJPY,
			MedalsPerDraw:  g.MedalsPerDraw,
			Active:         g.Active,
		},
		items:  items,
		picker: picker,
	}, nil
}

// GetMachineInfo 返回单台抽选机的静态信息。
func GetMachineInfo(gachaUUID string) (MachineInfo, bool) {
	globalRepository.rwLock.RLock()
	defer globalRepository.rwLock.RUnlock()
	m, ok := globalRepository.machines[gachaUUID]
	if !ok {
		return MachineInfo{}, false
	}
	return m.info, true
}

// ListMachineInfos 返回所有上架中抽选机的静态信息。
func ListMachineInfos() []MachineInfo {
	globalRepository.rwLock.RLock()
	defer globalRepository.rwLock.RUnlock()
	infos := make([]MachineInfo, 0, len(globalRepository.machines))
	for _, m := range globalRepository.machines {
		if m.info.Active {
			infos = append(infos, m.info)
		}
	}
	return infos
}

// GetItemPool 返回一台抽选机的完整奖池（拷贝）。
func GetItemPool(gachaUUID string) ([]ItemInfo, bool) {
	globalRepository.rwLock.RLock()
	defer globalRepository.rwLock.RUnlock()
	m, ok := globalRepository.machines[gachaUUID]
	if !ok {
		return nil, false
	}
	pool := make([]ItemInfo, len(m.items))
	copy(pool, m.items)
	return pool, true
}
