package video

import (
	"bufio"
	"io"
)

// mjpegScanner splits a concatenated MJPEG stream into individual JPEG
// payloads. JPEG entropy-coded data byte-stuffs 0xFF, so a raw FFD9 pair
// only ever occurs as a real end-of-image marker.
type mjpegScanner struct {
	r *bufio.Reader
}

func newMJPEGScanner(r io.Reader) *mjpegScanner {
	return &mjpegScanner{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next complete JPEG, start-of-image through end-of-image.
// io.EOF after the last frame; io.ErrUnexpectedEOF on a frame cut short.
func (s *mjpegScanner) Next() ([]byte, error) {
	if err := s.seekSOI(); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 32*1024)
	buf = append(buf, 0xFF, 0xD8)
	var prev byte
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		buf = append(buf, b)
		if prev == 0xFF && b == 0xD9 {
			return buf, nil
		}
		prev = b
	}
}

func (s *mjpegScanner) seekSOI() error {
	var prev byte
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		if prev == 0xFF && b == 0xD8 {
			return nil
		}
		prev = b
	}
}
