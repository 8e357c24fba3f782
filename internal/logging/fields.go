package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供路由/模式/格式/缓存键与命中状态字段，供渲染请求日志复用。
func RequestFields(route, mode, format, key string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"route":     route,
		"mode":      mode,
		"format":    format,
		"cache_key": key,
		"cache_hit": cacheHit,
	}
}
