package logger

import "go.uber.org/zap"

// L 是全局的结构化logger
var L *zap.Logger

// S 是全局的sugared logger，用于printf风格的日志
var S *zap.SugaredLogger

// Init 根据运行模式初始化全局logger
func Init(mode string) {
	if mode == "release" {
		L = zap.Must(zap.NewProduction())
	} else {
		L = zap.Must(zap.NewDevelopment())
	}
	S = L.Sugar()
}

// Sync 刷新缓冲的日志，应在main退出前defer调用
func Sync() {
	if L != nil {
		_ = L.Sync()
	}
}
