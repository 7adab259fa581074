//go:build !govips || !cgo

package imagecodec

func Startup() error {
	return nil
}

func Shutdown() {}

// Normalize re-encodes arbitrary decodable raster bytes to PNG so the
// rest of the pipeline only ever sees one format.
func Normalize(data []byte) ([]byte, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}
