package gacha

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
)

// GachaListResponse 是抽选机列表API的响应模型
type GachaListResponse struct {
	ID            string `json:"id"`
	VTuberID      string `json:"vtuberId"`
	Name          string `json:"name"`
	PriceSingle   int64  `json:"priceSingle"`
	PriceTen      int64  `json:"priceTen"`
	MedalsPerDraw int64  `json:"medalsPerDraw"`
}

// ItemOddsResponse 是奖品概率公示的响应模型
type ItemOddsResponse struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Rarity string  `json:"rarity"`
	Rate   float64 `json:"rate"` // 归一化后的出现概率
}

// GachaDetailResponse 包含抽选机详情与概率公示表
type GachaDetailResponse struct {
	GachaListResponse
	Description string             `json:"description"`
	Items       []ItemOddsResponse `json:"items"`
}

// GetGachas 返回所有上架中的抽选机
func GetGachas(c *gin.Context) {
	infos := ListMachineInfos()
	sort.Slice(infos, func(i, j int) bool { return infos[i].UUID < infos[j].UUID })

	responses := make([]GachaListResponse, 0, len(infos))
	for _, info := range infos {
		responses = append(responses, formatList(info))
	}
	c.JSON(http.StatusOK, responses)
}

// GetGachaByID 返回单台抽选机的详情，包含概率公示。
// 日本市场的抽选类商品必须公示各奖品的出现概率。
func GetGachaByID(c *gin.Context) {
	gachaID := c.Param("id")
	info, ok := GetMachineInfo(gachaID)
	if !ok || !info.Active {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrMachineNotFound.Error()})
		return
	}

	pool, _ := GetItemPool(gachaID)
	totalWeight := 0.0
	for _, item := range pool {
		totalWeight += item.Weight
	}

	items := make([]ItemOddsResponse, 0, len(pool))
	for _, item := range pool {
		rate := 0.0
		if totalWeight > 0 {
			rate = item.Weight / totalWeight
		}
		items = append(items, ItemOddsResponse{
			ID:     item.UUID,
			Name:   item.Name,
			Rarity: item.Rarity,
			Rate:   rate,
		})
	}

	c.JSON(http.StatusOK, GachaDetailResponse{
		GachaListResponse: formatList(info),
		Description:       info.Description,
		Items:             items,
	})
}

func formatList(info MachineInfo) GachaListResponse {
	return GachaListResponse{
		ID:            info.UUID,
		VTuberID:      info.VTuberID,
		Name:          info.Name,
		PriceSingle:   info.PriceSingleJPY,
		PriceTen:      info.PriceTenJPY,
		MedalsPerDraw: info.MedalsPerDraw,
	}
}
