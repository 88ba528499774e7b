package imaging

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"store_admin/internal/pkg/apierr"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCompress(t *testing.T) {
	testCases := []struct {
		name           string
		width, height  int
		maxWidth       int
		expectedWidth  int
		expectedHeight int
	}{
		{name: "wider than max is scaled down", width: 1600, height: 900, maxWidth: 800, expectedWidth: 800, expectedHeight: 450},
		{name: "odd ratio rounds height", width: 1000, height: 333, maxWidth: 800, expectedWidth: 800, expectedHeight: 266},
		{name: "narrower than max is unchanged", width: 640, height: 480, maxWidth: 800, expectedWidth: 640, expectedHeight: 480},
		{name: "exactly max is unchanged", width: 800, height: 1200, maxWidth: 800, expectedWidth: 800, expectedHeight: 1200},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Compress(bytes.NewReader(pngOf(t, tc.width, tc.height)), "photo.png", Options{MaxWidth: tc.maxWidth, Quality: 70, MaxBytes: 10 << 20})
			require.NoError(t, err)

			assert.Equal(t, tc.expectedWidth, out.Width)
			assert.Equal(t, tc.expectedHeight, out.Height)
			assert.LessOrEqual(t, out.Width, tc.maxWidth)
			assert.Equal(t, "photo.jpg", out.FileName)
			assert.Equal(t, "image/jpeg", out.ContentType)

			decoded, format, err := image.DecodeConfig(bytes.NewReader(out.Data))
			require.NoError(t, err)
			assert.Equal(t, "jpeg", format)
			assert.Equal(t, tc.expectedWidth, decoded.Width)
			assert.Equal(t, tc.expectedHeight, decoded.Height)
			assert.True(t, strings.HasPrefix(out.DataURL(), "data:image/jpeg;base64,"))
		})
	}
}

// resizedPNG returns a tiny PNG whose header claims w×h pixels.
func resizedPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	b := pngOf(t, 1, 1)
	binary.BigEndian.PutUint32(b[16:20], w)
	binary.BigEndian.PutUint32(b[20:24], h)
	binary.BigEndian.PutUint32(b[29:33], crc32.ChecksumIEEE(b[12:29]))
	return b
}

func TestCompressRejectsBadInput(t *testing.T) {
	_, err := Compress(strings.NewReader("%PDF-1.7 not an image"), "doc.pdf", DefaultOptions)
	require.Error(t, err)
	assert.Equal(t, apierr.ClientInput, apierr.KindOf(err))
	assert.Equal(t, MsgUnsupportedType, apierr.PublicMessage(err))

	_, err = Compress(bytes.NewReader(pngOf(t, 50, 50)), "big.png", Options{MaxBytes: 10})
	require.Error(t, err)
	assert.Equal(t, MsgTooLarge, apierr.PublicMessage(err))

	huge := resizedPNG(t, 10000, 10000)
	require.Less(t, int64(len(huge)), DefaultOptions.MaxBytes)
	_, err = Compress(bytes.NewReader(huge), "huge.png", DefaultOptions)
	require.Error(t, err)
	assert.Equal(t, apierr.ClientInput, apierr.KindOf(err))
	assert.Equal(t, MsgTooLarge, apierr.PublicMessage(err))

	_, err = Compress(bytes.NewReader(pngOf(t, 50, 50)), "wide.png", Options{MaxPixels: 49 * 50})
	assert.Equal(t, MsgTooLarge, apierr.PublicMessage(err))
}

func TestFitWidthKeepsAspectRatio(t *testing.T) {
	for _, size := range [][2]int{{4000, 3000}, {1921, 1080}, {801, 800}} {
		w, h := FitWidth(size[0], size[1], 800)
		assert.Equal(t, 800, w)
		ratioIn := float64(size[0]) / float64(size[1])
		ratioOut := float64(w) / float64(h)
		assert.InEpsilon(t, ratioIn, ratioOut, 0.01+1/float64(h), "size %v", size)
	}
}
