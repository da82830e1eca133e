package models

// ConversionUserData 转化事件用户数据（PII 均为 SHA-256 哈希）
type ConversionUserData struct {
	FBC             string   `json:"fbc,omitempty"`
	FBP             string   `json:"fbp,omitempty"`
	Phones          []string `json:"ph,omitempty"`
	FirstNames      []string `json:"fn,omitempty"`
	LastNames       []string `json:"ln,omitempty"`
	Cities          []string `json:"ct,omitempty"`
	Emails          []string `json:"em,omitempty"`
	ClientIPAddress *string  `json:"client_ip_address"`
	ClientUserAgent string   `json:"client_user_agent"`
}

// ConversionCustomData 转化事件业务数据
type ConversionCustomData struct {
	Currency string `json:"currency"`
	Value    string `json:"value"` // 两位小数字符串
	Quantity int    `json:"quantity"`
}

// ConversionEvent 标准转化事件信封
// EventID 在像素端与服务端中继间共享，用于下游去重
type ConversionEvent struct {
	EventName      string               `json:"event_name"`
	EventTime      int64                `json:"event_time"`
	ActionSource   string               `json:"action_source"`
	EventSourceURL string               `json:"event_source_url"`
	EventID        string               `json:"event_id"`
	UserData       ConversionUserData   `json:"user_data"`
	CustomData     ConversionCustomData `json:"custom_data"`
}
