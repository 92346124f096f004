package models

// ErrorInfo 存储了关于错误的结构化信息，作为日志条目中的 error 字段。
type ErrorInfo struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"` // 错误的堆栈信息
	Type    string `json:"type,omitempty"`  // 错误的类型，例如 "provider_error", "validation_error"
}
