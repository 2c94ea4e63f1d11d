package output

import (
	"testing"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/assert"
)

func TestWorstFractionLost(t *testing.T) {
	packets := []rtcp.Packet{
		&rtcp.SenderReport{},
		&rtcp.ReceiverReport{Reports: []rtcp.ReceptionReport{
			{FractionLost: 12},
			{FractionLost: 64},
		}},
	}

	loss, ok := worstFractionLost(packets)
	assert.True(t, ok)
	assert.Equal(t, uint8(64), loss)

	_, ok = worstFractionLost([]rtcp.Packet{&rtcp.SenderReport{}})
	assert.False(t, ok)
}
