package xapi

// 指标与追踪的组件名、操作名和属性键。
const (
	MetricsComponent = "xapi"

	MetricsOpHTTPRequest = "http_request"

	MetricsAttrHTTPMethod = "http.method"
	MetricsAttrHTTPPath   = "http.path"
	MetricsAttrHTTPStatus = "http.status_code"
	MetricsAttrReplay     = "xapi.replay"
)
