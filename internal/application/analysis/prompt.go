// Package analysis 提供事件描述的编排与降级
package analysis

import (
	"fmt"

	"cam-sentinel-ai/internal/domain/entity"
)

// 提示词按检测类型定制重点，置信度以 JSON 形式随描述返回
const promptTemplate = `You are a home security assistant. %s
Describe what is happening in one or two concise sentences, focusing on %s.
Respond with a single JSON object and nothing else:
{"description": "<your description>", "confidence": <integer 0-100 indicating how certain you are>}`

// BuildPrompt 按检测类型与分析模式生成提示词
func BuildPrompt(detectionType entity.DetectionType, mode entity.AnalysisMode) string {
	var mediaHint string
	switch mode {
	case entity.ModeVideoNative:
		mediaHint = "You are given a short security camera video clip."
	case entity.ModeMultiFrame:
		mediaHint = "You are given a sequence of frames from a security camera, in chronological order."
	default:
		mediaHint = "You are given a single frame from a security camera."
	}

	var focus string
	switch detectionType {
	case entity.DetectionPerson:
		focus = "who the person appears to be, what they are wearing and what they are doing"
	case entity.DetectionVehicle:
		focus = "the vehicle's color, make and model if visible, and what it is doing"
	case entity.DetectionPackage:
		focus = "the package and where it was placed"
	case entity.DetectionAnimal:
		focus = "what kind of animal it is and what it is doing"
	case entity.DetectionDoorbell:
		focus = "who is at the door and what they appear to want"
	default:
		focus = "any people, vehicles or notable activity"
	}

	return fmt.Sprintf(promptTemplate, mediaHint, focus)
}
