package camera

import (
	"bytes"
	"testing"
)

func TestParseResolution(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    Resolution
		wantErr bool
	}{
		{"VGA", "640x480", Resolution{Width: 640, Height: 480}, false},
		{"フルHD", "1920x1080", Resolution{Width: 1920, Height: 1080}, false},
		{"区切りなし", "640480", Resolution{}, true},
		{"幅が数値でない", "abcx480", Resolution{}, true},
		{"高さが数値でない", "640xdef", Resolution{}, true},
		{"空文字列", "", Resolution{}, true},
		{"幅がゼロ", "0x480", Resolution{}, true},
		{"高さがゼロ", "640x0", Resolution{}, true},
		{"負の値", "-640x480", Resolution{}, true},
		{"大文字の区切り", "640X480", Resolution{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseResolution(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q, got none", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseResolution(%q) failed: %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("Expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestResolutionString(t *testing.T) {
	res := Resolution{Width: 1280, Height: 720}
	if got := res.String(); got != "1280x720" {
		t.Errorf("Expected 1280x720, got %s", got)
	}
}

func TestNewChunk(t *testing.T) {
	jpeg := []byte("jpegdata")
	chunk := NewChunk(jpeg)

	// ワイヤ形式: 境界行、Content-Type行、空行、本体、CRLF
	if !bytes.HasPrefix(chunk, []byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")) {
		t.Errorf("Chunk header mismatch: %q", chunk)
	}
	if !bytes.HasSuffix(chunk, []byte("jpegdata\r\n")) {
		t.Errorf("Chunk suffix mismatch: %q", chunk)
	}
	if got := chunk.JPEG(); !bytes.Equal(got, jpeg) {
		t.Errorf("Expected JPEG payload %q, got %q", jpeg, got)
	}
}

func TestChunkJPEG_Malformed(t *testing.T) {
	if got := Chunk("short").JPEG(); got != nil {
		t.Errorf("Expected nil for malformed chunk, got %q", got)
	}
}
