package schema

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// MaxTagLength 单个标签的最大长度
const MaxTagLength = 32

// StringSet 以 JSON 数组存储的字符串集合（已归一化：小写、去重、排序）
type StringSet []string

// NewStringSet 归一化并构造集合；含空项、超长或含空白/逗号的标签返回错误
func NewStringSet(items []string) (StringSet, error) {
	out := make(StringSet, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, raw := range items {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag == "" {
			return nil, fmt.Errorf("标签不能为空")
		}
		if len(tag) > MaxTagLength {
			return nil, fmt.Errorf("标签 %q 超过 %d 个字符", tag, MaxTagLength)
		}
		if strings.ContainsRune(tag, ',') || strings.IndexFunc(tag, unicode.IsSpace) >= 0 {
			return nil, fmt.Errorf("标签 %q 含有非法字符", tag)
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out, nil
}

// ParseTagList 解析逗号分隔的标签输入，空串表示无标签
func ParseTagList(input string) (StringSet, error) {
	if strings.TrimSpace(input) == "" {
		return StringSet{}, nil
	}
	return NewStringSet(strings.Split(input, ","))
}

// Contains 是否包含某个标签
func (s StringSet) Contains(tag string) bool {
	for _, it := range s {
		if it == tag {
			return true
		}
	}
	return false
}

// Intersects 两个集合是否有交集
func (s StringSet) Intersects(other StringSet) bool {
	for _, it := range other {
		if s.Contains(it) {
			return true
		}
	}
	return false
}

// String 逗号拼接，便于日志和缓存键
func (s StringSet) String() string {
	return strings.Join(s, ",")
}

// Value 实现 driver.Valuer 接口
func (s StringSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner 接口；读出后立即归一化，脏数据中的空项被丢弃
func (s *StringSet) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = StringSet{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("无法解析标签列: %T", value)
	}
	if len(raw) == 0 {
		*s = StringSet{}
		return nil
	}

	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("解析标签 JSON 失败: %w", err)
	}
	kept := items[:0]
	for _, it := range items {
		if strings.TrimSpace(it) != "" {
			kept = append(kept, it)
		}
	}
	set, err := NewStringSet(kept)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
