package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"cam-sentinel-ai/internal/domain/entity"
)

func TestBuildPromptVariesByMode(t *testing.T) {
	video := BuildPrompt(entity.DetectionPerson, entity.ModeVideoNative)
	frames := BuildPrompt(entity.DetectionPerson, entity.ModeMultiFrame)
	single := BuildPrompt(entity.DetectionPerson, entity.ModeSingleFrame)

	assert.Contains(t, video, "video clip")
	assert.Contains(t, frames, "sequence of frames")
	assert.Contains(t, single, "single frame")
}

func TestBuildPromptVariesByDetectionType(t *testing.T) {
	vehicle := BuildPrompt(entity.DetectionVehicle, entity.ModeMultiFrame)
	assert.Contains(t, vehicle, "color, make and model")

	person := BuildPrompt(entity.DetectionPerson, entity.ModeMultiFrame)
	assert.Contains(t, person, "wearing")

	motion := BuildPrompt(entity.DetectionMotion, entity.ModeMultiFrame)
	assert.Contains(t, motion, "notable activity")
}

func TestBuildPromptRequestsJSON(t *testing.T) {
	prompt := BuildPrompt(entity.DetectionPerson, entity.ModeSingleFrame)

	assert.True(t, strings.Contains(prompt, `"description"`))
	assert.True(t, strings.Contains(prompt, `"confidence"`))
}
