package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDescriptionStrictJSON(t *testing.T) {
	desc, conf := ExtractDescription(`{"description": "A person walks to the front door.", "confidence": 87}`)

	assert.Equal(t, "A person walks to the front door.", desc)
	require.NotNil(t, conf)
	assert.Equal(t, 87, *conf)
}

func TestExtractDescriptionJSONWithNoise(t *testing.T) {
	text := "Here is the analysis:\n```json\n{\"description\": \"A grey sedan parked in the driveway.\", \"confidence\": 72}\n```\nLet me know if you need more."

	desc, conf := ExtractDescription(text)

	assert.Equal(t, "A grey sedan parked in the driveway.", desc)
	require.NotNil(t, conf)
	assert.Equal(t, 72, *conf)
}

func TestExtractDescriptionJSONWithoutConfidence(t *testing.T) {
	desc, conf := ExtractDescription(`{"description": "A cat crosses the yard."}`)

	assert.Equal(t, "A cat crosses the yard.", desc)
	assert.Nil(t, conf)
}

func TestExtractDescriptionFloatConfidence(t *testing.T) {
	desc, conf := ExtractDescription(`{"description": "Someone at the gate.", "confidence": 64.8}`)

	assert.Equal(t, "Someone at the gate.", desc)
	require.NotNil(t, conf)
	assert.Equal(t, 64, *conf)
}

func TestExtractDescriptionPlainTextFallback(t *testing.T) {
	text := "A delivery driver leaves a package on the porch. Confidence: 90"

	desc, conf := ExtractDescription(text)

	assert.Equal(t, text, desc)
	require.NotNil(t, conf)
	assert.Equal(t, 90, *conf)
}

func TestExtractDescriptionPlainTextWithoutConfidence(t *testing.T) {
	desc, conf := ExtractDescription("  A raccoon near the trash cans.  ")

	assert.Equal(t, "A raccoon near the trash cans.", desc)
	assert.Nil(t, conf)
}

func TestExtractDescriptionOutOfRangeConfidence(t *testing.T) {
	// 超出 [0,100] 的值视为缺失
	desc, conf := ExtractDescription(`{"description": "Motion detected.", "confidence": 250}`)
	assert.Equal(t, "Motion detected.", desc)
	assert.Nil(t, conf)

	_, conf = ExtractDescription(`{"description": "Motion detected.", "confidence": -5}`)
	assert.Nil(t, conf)

	// 宽松路径同样拒绝超界值
	_, conf = ExtractDescription("Something moved, confidence 150 maybe")
	assert.Nil(t, conf)
}

func TestExtractDescriptionEmptyInput(t *testing.T) {
	desc, conf := ExtractDescription("")
	assert.Empty(t, desc)
	assert.Nil(t, conf)
}
