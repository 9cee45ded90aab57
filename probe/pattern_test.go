package probe

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/torre76/accelhound/codec"
	"github.com/torre76/accelhound/codec/codectest"
)

// PatternTestSuite covers the synthetic frame generator.
type PatternTestSuite struct {
	suite.Suite
}

// TestSample8Bit checks the 8 bit ramps, including wrap-around.
func (s *PatternTestSuite) TestSample8Bit() {
	assert.Equal(s.T(), uint16(0), Sample(0, 0, 0, 0, 8))
	assert.Equal(s.T(), uint16(5+7+3*2), Sample(0, 5, 7, 2, 8))
	assert.Equal(s.T(), uint16((300+0+0)&0xFF), Sample(0, 300, 0, 0, 8))
	assert.Equal(s.T(), uint16(128+7+2*2), Sample(1, 5, 7, 2, 8))
	assert.Equal(s.T(), uint16(64+5+5*2), Sample(2, 5, 7, 2, 8))
	assert.Equal(s.T(), uint16((64+200+5*29)&0xFF), Sample(2, 200, 0, 29, 8))
}

// TestSample10Bit checks the 10 bit ramps stay inside the 10 bit range.
func (s *PatternTestSuite) TestSample10Bit() {
	assert.Equal(s.T(), uint16(((5+7+3*2)*4)&0x3FF), Sample(0, 5, 7, 2, 10))
	assert.Equal(s.T(), uint16(((512+7+2*2)*4)&0x3FF), Sample(1, 5, 7, 2, 10))
	assert.Equal(s.T(), uint16(((256+5+5*2)*4)&0x3FF), Sample(2, 5, 7, 2, 10))

	for x := 0; x < 2000; x += 37 {
		assert.LessOrEqual(s.T(), Sample(0, x, x, 29, 10), uint16(0x3FF))
	}
}

// TestFillFrameIsPure checks that filling twice yields identical bytes and
// that different frame indexes differ.
func (s *PatternTestSuite) TestFillFrameIsPure() {
	for _, pf := range []codec.PixelFormat{codec.PixelFormatYUV420P, codec.PixelFormatYUV420P10LE} {
		s.Run(string(pf), func() {
			a, err := codec.NewFrame(64, 32, pf)
			require.NoError(s.T(), err)
			b, err := codec.NewFrame(64, 32, pf)
			require.NoError(s.T(), err)

			FillFrame(a, 7)
			FillFrame(b, 3)
			FillFrame(b, 7)
			assert.Equal(s.T(), a.Bytes(), b.Bytes())

			FillFrame(b, 8)
			assert.NotEqual(s.T(), a.Bytes(), b.Bytes())
		})
	}
}

// TestFillFrameLayout checks individual samples land at the right offsets.
func (s *PatternTestSuite) TestFillFrameLayout() {
	f, err := codec.NewFrame(16, 8, codec.PixelFormatYUV420P)
	require.NoError(s.T(), err)
	FillFrame(f, 4)
	assert.Equal(s.T(), byte(Sample(0, 3, 2, 4, 8)), f.Planes[0][2*16+3])
	assert.Equal(s.T(), byte(Sample(1, 5, 3, 4, 8)), f.Planes[1][3*8+5])
	assert.Equal(s.T(), byte(Sample(2, 7, 1, 4, 8)), f.Planes[2][1*8+7])

	hdr, err := codec.NewFrame(16, 8, codec.PixelFormatYUV420P10LE)
	require.NoError(s.T(), err)
	FillFrame(hdr, 4)
	assert.Equal(s.T(), Sample(0, 3, 2, 4, 10), binary.LittleEndian.Uint16(hdr.Planes[0][2*32+6:]))
	assert.Equal(s.T(), Sample(2, 7, 1, 4, 10), binary.LittleEndian.Uint16(hdr.Planes[2][1*16+14:]))
}

// TestRunsAreByteIdentical checks that two benchmark runs against the null
// provider submit exactly the same frames.
func (s *PatternTestSuite) TestRunsAreByteIdentical() {
	run := func() [][]byte {
		p := &codectest.Provider{
			CodecList: []*codec.Codec{codectest.HardwareEncoder("null_hw", "rawvideo", "cuda")},
			Record:    true,
		}
		h := NewHarness(p, WithSettings(Settings{Width: 32, Height: 16, Frames: 6, BitRate: 1000}))
		fps := h.Measure(context.Background(), "null_hw", codec.ProfileHDR)
		require.Greater(s.T(), fps, 0.0)
		return p.Submitted("null_hw")
	}

	first, second := run(), run()
	require.Len(s.T(), first, 6)
	assert.Equal(s.T(), first, second)
}

// TestPatternSuite runs the pattern test suite.
func TestPatternSuite(t *testing.T) {
	suite.Run(t, new(PatternTestSuite))
}
