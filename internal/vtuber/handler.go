package vtuber

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
)

// VTuberResponse 是公开目录API的响应模型
type VTuberResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ChannelURL  string `json:"channelUrl"`
	Description string `json:"description"`
}

func formatVTuber(v VTuber) VTuberResponse {
	return VTuberResponse{
		ID:          v.UUID,
		Name:        v.Name,
		ChannelURL:  v.ChannelURL,
		Description: v.Description,
	}
}

// GetVTubers 返回公开的VTuber目录
func GetVTubers(c *gin.Context) {
	vtubers, err := ListApproved()
	if err != nil {
		logger.S.Errorf("获取VTuber目录失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "VTuber一覧の取得に失敗しました"})
		return
	}

	responses := make([]VTuberResponse, 0, len(vtubers))
	for _, v := range vtubers {
		responses = append(responses, formatVTuber(v))
	}
	c.JSON(http.StatusOK, responses)
}

// GetVTuberByID 返回单个VTuber的公开信息
func GetVTuberByID(c *gin.Context) {
	v, err := GetByUUID(c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		logger.S.Errorf("查询VTuber失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "VTuber情報の取得に失敗しました"})
		return
	}
	if v.Status != StatusApproved {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, formatVTuber(*v))
}
