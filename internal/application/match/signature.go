// Package match 提供周期性实体的识别与关联
package match

import (
	"regexp"
	"strings"
)

// 车辆签名从描述文本中按 颜色-品牌-型号 提取。
// 词表覆盖常见住宅场景的取值，识别不出时退回部分签名。
var (
	vehicleColors = []string{
		"white", "black", "silver", "gray", "grey", "red", "blue",
		"green", "brown", "beige", "gold", "yellow", "orange",
	}
	vehicleBrands = []string{
		"toyota", "honda", "ford", "chevrolet", "chevy", "nissan", "tesla",
		"bmw", "mercedes", "audi", "volkswagen", "subaru", "hyundai", "kia",
		"jeep", "ram", "gmc", "dodge", "mazda", "lexus", "volvo",
	}
	wordPattern = regexp.MustCompile(`[a-z0-9-]+`)
)

// candidateModel 品牌后紧跟的词作为型号，排除明显的非型号词
var nonModelWords = map[string]struct{}{
	"car": {}, "truck": {}, "suv": {}, "van": {}, "pickup": {},
	"sedan": {}, "vehicle": {}, "is": {}, "was": {}, "parked": {},
	"drives": {}, "driving": {}, "pulls": {}, "pulled": {},
}

// ExtractVehicleSignature 从事件描述中提取 "color-brand-model" 签名。
// 颜色和品牌都识别不出时返回空串；型号取品牌后紧跟的词。
func ExtractVehicleSignature(description string) string {
	words := wordPattern.FindAllString(strings.ToLower(description), -1)
	if len(words) == 0 {
		return ""
	}

	var color, brand, model string
	for i, w := range words {
		if color == "" && containsWord(vehicleColors, w) {
			color = normalizeColor(w)
			continue
		}
		if brand == "" && containsWord(vehicleBrands, w) {
			brand = normalizeBrand(w)
			if i+1 < len(words) {
				model = candidateModel(words[i+1])
			}
		}
	}

	if color == "" && brand == "" {
		return ""
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{color, brand, model} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}

func containsWord(list []string, w string) bool {
	for _, v := range list {
		if v == w {
			return true
		}
	}
	return false
}

func normalizeColor(c string) string {
	if c == "grey" {
		return "gray"
	}
	return c
}

func normalizeBrand(b string) string {
	if b == "chevy" {
		return "chevrolet"
	}
	return b
}

func candidateModel(w string) string {
	if _, ok := nonModelWords[w]; ok {
		return ""
	}
	return w
}
