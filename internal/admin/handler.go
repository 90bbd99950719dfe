package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/koepon-app/koepon-backend/internal/gacha"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"github.com/koepon-app/koepon-backend/internal/user"
	"github.com/koepon-app/koepon-backend/internal/vtuber"
)

// GetDashboard 处理 GET /admin/dashboard/stats
func GetDashboard(c *gin.Context) {
	stats, err := GetDashboardStats()
	if err != nil {
		logger.S.Errorf("管理面板统计失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "統計情報の取得に失敗しました"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListUsers 处理 GET /admin/users
func ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	users, total, err := user.ListAll(page, pageSize)
	if err != nil {
		logger.S.Errorf("用户列表查询失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー一覧の取得に失敗しました"})
		return
	}

	type adminUserResponse struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		Role        string `json:"role"`
		DisplayName string `json:"displayName"`
	}
	resp := make([]adminUserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, adminUserResponse{
			ID:          u.UUID,
			Email:       u.Email,
			Role:        u.Role,
			DisplayName: u.DisplayName,
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": resp, "total": total})
}

// ListVTubers 处理 GET /admin/vtubers，返回全部状态的VTuber
func ListVTubers(c *gin.Context) {
	vtubers, err := vtuber.ListAll()
	if err != nil {
		logger.S.Errorf("VTuber列表查询失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "VTuber一覧の取得に失敗しました"})
		return
	}
	c.JSON(http.StatusOK, vtubers)
}

// ApproveVTuber 处理 POST /admin/vtubers/:id/approve
func ApproveVTuber(c *gin.Context) {
	id := c.Param("id")
	if err := vtuber.Approve(id); err != nil {
		if errors.Is(err, vtuber.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		logger.S.Errorf("VTuber审核失败 id=%s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "承認に失敗しました"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "承認しました"})
}

// ListGachasAdmin 处理 GET /admin/gacha
func ListGachasAdmin(c *gin.Context) {
	machines, err := gacha.ListMachinesAdmin()
	if err != nil {
		logger.S.Errorf("抽选机列表查询失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ガチャ一覧の取得に失敗しました"})
		return
	}
	c.JSON(http.StatusOK, machines)
}

type gachaItemRequest struct {
	Name   string  `json:"name" binding:"required"`
	Rarity string  `json:"rarity" binding:"required"`
	Weight float64 `json:"weight" binding:"required,gt=0"`
}

type gachaRequest struct {
	VTuberID       string             `json:"vtuberId" binding:"required"`
	Name           string             `json:"name" binding:"required"`
	Description    string             `json:"description"`
	PriceSingleJPY int64              `json:"priceSingle" binding:"required,gt=0"`
	PriceTenJPY    int64              `json:"priceTen" binding:"required,gt=0"`
	MedalsPerDraw  int64              `json:"medalsPerDraw" binding:"gte=0"`
	Active         bool               `json:"active"`
	Items          []gachaItemRequest `json:"items"`
}

func (r gachaRequest) toInput() gacha.MachineInput {
	input := gacha.MachineInput{
		VTuberID:       r.VTuberID,
		Name:           r.Name,
		Description:    r.Description,
		PriceSingleJPY: r.PriceSingleJPY,
		PriceTenJPY:    r.PriceTenJPY,
		MedalsPerDraw:  r.MedalsPerDraw,
		Active:         r.Active,
	}
	if r.Items != nil {
		input.Items = make([]gacha.ItemInput, 0, len(r.Items))
		for _, item := range r.Items {
			input.Items = append(input.Items, gacha.ItemInput{
				Name:   item.Name,
				Rarity: item.Rarity,
				Weight: item.Weight,
			})
		}
	}
	return input
}

// CreateGacha 处理 POST /admin/gacha
func CreateGacha(c *gin.Context) {
	var req gachaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "入力内容が正しくありません"})
		return
	}

	gachaUUID, err := gacha.CreateMachine(req.toInput())
	if err != nil {
		logger.S.Errorf("抽选机创建失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ガチャの作成に失敗しました"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": gachaUUID})
}

// UpdateGacha 处理 PUT /admin/gacha/:id
func UpdateGacha(c *gin.Context) {
	var req gachaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "入力内容が正しくありません"})
		return
	}

	id := c.Param("id")
	if err := gacha.UpdateMachine(id, req.toInput()); err != nil {
		if errors.Is(err, gacha.ErrMachineNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		logger.S.Errorf("抽选机更新失败 id=%s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ガチャの更新に失敗しました"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "更新しました"})
}
