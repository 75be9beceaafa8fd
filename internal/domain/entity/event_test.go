package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackReasonRoundTrip(t *testing.T) {
	var r FallbackReason
	r.Append(ModeVideoNative, "provider_unsupported")
	r.Append(ModeMultiFrame, "media_busy")

	v, err := r.Value()
	require.NoError(t, err)
	assert.Equal(t, "video_native:provider_unsupported,multi_frame:media_busy", v)

	var scanned FallbackReason
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, r, scanned)
}

func TestFallbackReasonEmpty(t *testing.T) {
	var r FallbackReason
	v, err := r.Value()
	require.NoError(t, err)
	assert.Equal(t, "", v)

	var scanned FallbackReason
	require.NoError(t, scanned.Scan(""))
	assert.Nil(t, scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.Nil(t, scanned)
}

func TestSetConfidence(t *testing.T) {
	e := NewEvent("front_door", DetectionPerson, time.Now())

	low := 30
	e.SetConfidence(&low, 50)
	assert.True(t, e.LowConfidence)

	high := 80
	e.SetConfidence(&high, 50)
	assert.False(t, e.LowConfidence)

	boundary := 50
	e.SetConfidence(&boundary, 50)
	assert.False(t, e.LowConfidence)

	// 置信度未知时不得标记低置信度
	e.SetConfidence(nil, 50)
	assert.Nil(t, e.Confidence)
	assert.False(t, e.LowConfidence)
}

func TestMarkSkipped(t *testing.T) {
	e := NewEvent("front_door", DetectionPerson, time.Now())
	conf := 90
	e.SetConfidence(&conf, 50)

	e.MarkSkipped(SkipReasonBudgetDaily, "AI analysis paused: daily budget limit reached")

	assert.Equal(t, ModeUnavailable, e.AnalysisMode)
	require.NotNil(t, e.AnalysisSkippedReason)
	assert.Equal(t, SkipReasonBudgetDaily, *e.AnalysisSkippedReason)
	assert.Nil(t, e.Confidence)
	assert.False(t, e.LowConfidence)
}

func TestCameraEntryMode(t *testing.T) {
	withClip := &Camera{PreferredMode: ModeVideoNative, HasClipSource: true}
	assert.Equal(t, ModeVideoNative, withClip.EntryMode())

	// 没有片段源时视频与多帧都不可行
	noClip := &Camera{PreferredMode: ModeVideoNative, HasClipSource: false}
	assert.Equal(t, ModeSingleFrame, noClip.EntryMode())

	unset := &Camera{HasClipSource: true}
	assert.Equal(t, ModeMultiFrame, unset.EntryMode())
}

func TestRecordSighting(t *testing.T) {
	seen := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	e := NewRecognizedEntity(RecognizedVehicle, seen)

	later := seen.Add(48 * time.Hour)
	e.RecordSighting(later)
	assert.Equal(t, 1, e.OccurrenceCount)
	assert.Equal(t, later, e.LastSeen)

	// 乱序到达的旧事件不回拨 LastSeen
	e.RecordSighting(seen)
	assert.Equal(t, 2, e.OccurrenceCount)
	assert.Equal(t, later, e.LastSeen)
}

func TestRefineSignature(t *testing.T) {
	e := NewRecognizedEntity(RecognizedVehicle, time.Now())

	e.RefineSignature("")
	assert.Nil(t, e.Signature)

	e.RefineSignature("white-toyota-camry")
	require.NotNil(t, e.Signature)
	assert.Equal(t, "white-toyota-camry", *e.Signature)

	// 已有签名不被覆盖
	e.RefineSignature("black-ford-f150")
	assert.Equal(t, "white-toyota-camry", *e.Signature)
}
