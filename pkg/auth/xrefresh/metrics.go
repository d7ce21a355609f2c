package xrefresh

const (
	// MetricsComponent 组件名称。
	MetricsComponent = "xrefresh"

	MetricsOpAuthorize = "Authorize"
	MetricsOpRefresh   = "Refresh"

	// MetricsAttrDriver 标记本次 Authorize 是否为发起刷新的驱动者。
	MetricsAttrDriver = "driver"
)
