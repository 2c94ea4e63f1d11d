package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSourceID(t *testing.T) {
	assert.NoError(t, ValidateSourceID("cam-1"))
	assert.NoError(t, ValidateSourceID("guest_42"))
	assert.Error(t, ValidateSourceID(""))
	assert.Error(t, ValidateSourceID("has space"))
	assert.Error(t, ValidateSourceID(strings.Repeat("x", 65)))
}

func TestValidateIngestURL(t *testing.T) {
	assert.NoError(t, ValidateIngestURL("rtmp://a.rtmp.youtube.com/live2"))
	assert.NoError(t, ValidateIngestURL("rtmps://live-api-s.facebook.com:443/rtmp/"))
	assert.NoError(t, ValidateIngestURL("https://whip.example.com/endpoint"))
	assert.Error(t, ValidateIngestURL(""))
	assert.Error(t, ValidateIngestURL("ftp://example.com/live"))
	assert.Error(t, ValidateIngestURL("rtmp://"))
}

func TestValidateStreamKey(t *testing.T) {
	assert.NoError(t, ValidateStreamKey("abcd-1234-efgh"))
	assert.Error(t, ValidateStreamKey(""))
	assert.Error(t, ValidateStreamKey("has space"))
	assert.Error(t, ValidateStreamKey(strings.Repeat("k", 257)))
}

func TestValidateHexColor(t *testing.T) {
	assert.NoError(t, ValidateHexColor("#000000"))
	assert.NoError(t, ValidateHexColor("#AaBbCc"))
	assert.Error(t, ValidateHexColor("000000"))
	assert.Error(t, ValidateHexColor("#12345"))
	assert.Error(t, ValidateHexColor("#12345G"))
}
