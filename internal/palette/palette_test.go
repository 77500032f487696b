package palette

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// writeTestImage renders a half red, half blue image to a temp file
func writeTestImage(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if x < 32 {
				img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
			} else {
				img.Set(x, y, color.RGBA{R: 30, G: 30, B: 200, A: 255})
			}
		}
	}

	path := filepath.Join(t.TempDir(), "test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating test image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return path
}

func TestExtract_TwoColorImage(t *testing.T) {
	path := writeTestImage(t)

	swatches, err := Extract(path, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(swatches) != 2 {
		t.Fatalf("swatches = %d, want 2", len(swatches))
	}

	var total float64
	for _, s := range swatches {
		if !strings.HasPrefix(s.Hex, "#") || len(s.Hex) != 7 {
			t.Errorf("hex %q is not #rrggbb", s.Hex)
		}
		total += s.Weight
	}
	if math.Abs(total-1.0) > 1e-9 {
		t.Errorf("weights sum to %v, want 1.0", total)
	}

	// An even split should cluster near 50/50
	if math.Abs(swatches[0].Weight-0.5) > 0.1 {
		t.Errorf("dominant weight = %v, want close to 0.5", swatches[0].Weight)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	path := writeTestImage(t)

	first, err := Extract(path, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Extract(path, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("extraction is not deterministic:\n%v\n%v", first, second)
	}
}

func TestExtract_WeightOrdering(t *testing.T) {
	path := writeTestImage(t)

	swatches, err := Extract(path, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(swatches); i++ {
		if swatches[i].Weight > swatches[i-1].Weight {
			t.Errorf("swatches not ordered by weight: %v", swatches)
		}
	}
}

func TestExtract_ClampsRequestedCount(t *testing.T) {
	path := writeTestImage(t)

	// 100 clamps to 8; the image only has 2 real colors so some clusters
	// may merge, but never more than 8 come back
	swatches, err := Extract(path, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(swatches) > 8 {
		t.Errorf("swatches = %d, want at most 8", len(swatches))
	}
}

func TestExtract_MissingFile(t *testing.T) {
	if _, err := Extract("/does/not/exist.png", 4); err == nil {
		t.Fatal("missing file must error")
	}
}

func TestBlock(t *testing.T) {
	block := Block([]Swatch{
		{Hex: "#aa3311", Weight: 0.6},
		{Hex: "#1133aa", Weight: 0.4},
	})

	if block.Summary == "" {
		t.Error("block needs a summary")
	}
	want := []string{"#aa3311 (60%)", "#1133aa (40%)"}
	if !reflect.DeepEqual(block.Traits, want) {
		t.Errorf("traits = %v, want %v", block.Traits, want)
	}
}
