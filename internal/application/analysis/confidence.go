package analysis

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// 宽松回退：在自由文本里找 "confidence" 附近的整数
var confidencePattern = regexp.MustCompile(`(?i)confidence[^0-9]{0,12}(\d{1,3})`)

type describeResult struct {
	Description string       `json:"description"`
	Confidence  *json.Number `json:"confidence"`
}

// ExtractDescription 从模型输出中提取描述与置信度。
// 先走严格 JSON 解析，失败后退回宽松的文本匹配；
// 置信度缺失或超出 [0,100] 时返回 nil，描述则尽量保留。
func ExtractDescription(text string) (string, *int) {
	raw := extractJSONObject(text)

	var parsed describeResult
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil && parsed.Description != "" {
		return strings.TrimSpace(parsed.Description), confidenceFromNumber(parsed.Confidence)
	}

	// 宽松路径：描述取原文，置信度从文本里捞
	desc := strings.TrimSpace(text)
	var confidence *int
	if m := confidencePattern.FindStringSubmatch(text); len(m) == 2 {
		if v, err := strconv.Atoi(m[1]); err == nil && v >= 0 && v <= 100 {
			confidence = &v
		}
	}
	return desc, confidence
}

func confidenceFromNumber(n *json.Number) *int {
	if n == nil {
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil
	}
	v := int(f)
	if v < 0 || v > 100 {
		return nil
	}
	return &v
}

// extractJSONObject 从可能带前后缀噪音的文本中提取顶层 JSON。
// 无法确认有效性时回退为原始输入（trim 后）。
func extractJSONObject(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return raw
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	for {
		_, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return raw
			}
			return strings.TrimSpace(s)
		}
	}
}
