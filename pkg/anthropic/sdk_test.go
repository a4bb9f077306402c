package anthropic

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSDKMessage(t *testing.T) {
	sdkMsg := &sdk.Message{
		ID:           "msg_test_123",
		Model:        "claude-haiku-4-5-20251001",
		StopReason:   "end_turn",
		StopSequence: "STOP",
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "Hello world"},
			{Type: "text", Text: "Second block"},
		},
		Usage: sdk.Usage{
			InputTokens:              100,
			OutputTokens:             50,
			CacheCreationInputTokens: 2000,
			CacheReadInputTokens:     3000,
		},
	}

	resp := fromSDKMessage(sdkMsg)
	require.NotNil(t, resp)
	assert.Equal(t, "msg_test_123", resp.ID)
	assert.Equal(t, "claude-haiku-4-5-20251001", resp.Model)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, "STOP", resp.StopSequence)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, "text", resp.Content[0].Type)
	assert.Equal(t, "Hello world", resp.Content[0].Text)
	assert.Equal(t, "Second block", resp.Content[1].Text)
	assert.Equal(t, int64(100), resp.Usage.InputTokens)
	assert.Equal(t, int64(50), resp.Usage.OutputTokens)
	assert.Equal(t, int64(2000), resp.Usage.CacheCreationInputTokens)
	assert.Equal(t, int64(3000), resp.Usage.CacheReadInputTokens)
}

func TestFromSDKMessage_EmptyContent(t *testing.T) {
	sdkMsg := &sdk.Message{
		ID:         "msg_empty",
		Model:      "claude-haiku-4-5-20251001",
		StopReason: "max_tokens",
	}

	resp := fromSDKMessage(sdkMsg)
	require.NotNil(t, resp)
	assert.Empty(t, resp.Content)
	assert.Equal(t, "max_tokens", resp.StopReason)
	assert.Equal(t, int64(0), resp.Usage.InputTokens)
}

func TestToSDKMessages_Roles(t *testing.T) {
	msgs := []Message{
		TextMessage("user", "Question"),
		TextMessage("assistant", "Answer"),
	}

	out := toSDKMessages(msgs)
	require.Len(t, out, 2)
	assert.Equal(t, sdk.MessageParamRoleUser, out[0].Role)
	assert.Equal(t, sdk.MessageParamRoleAssistant, out[1].Role)
}

func TestToSDKMessages_ImageBlock(t *testing.T) {
	msgs := []Message{
		ImageMessage("image/png", []byte{0x01, 0x02}, "Transcribe."),
	}

	out := toSDKMessages(msgs)
	require.Len(t, out, 1)
	require.Len(t, out[0].Content, 2)
	assert.NotNil(t, out[0].Content[0].OfImage)
	require.NotNil(t, out[0].Content[1].OfText)
	assert.Equal(t, "Transcribe.", out[0].Content[1].OfText.Text)
}

func TestToSDKSystemBlocks(t *testing.T) {
	blocks := []SystemBlock{
		{Text: "plain"},
		{Text: "cached", CacheControl: &CacheControl{TTL: "1h"}},
	}

	out := toSDKSystemBlocks(blocks)
	require.Len(t, out, 2)
	assert.Equal(t, "plain", out[0].Text)
	assert.Equal(t, "cached", out[1].Text)
	assert.Equal(t, sdk.CacheControlEphemeralTTL("1h"), out[1].CacheControl.TTL)
}
