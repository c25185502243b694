package dto

// DisplayDocument 与传输无关的展示文档；由传输层映射为平台消息格式（含截断规则）
type DisplayDocument struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Fields      []Field `json:"fields"`
	Footer      string  `json:"footer,omitempty"`
}

// Field 文档中的一个字段
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}
