// Package palette measures the dominant colors of an image. Style
// estimation is probabilistic; color measurement is not, so extraction
// here is fully deterministic: fixed sampling stride, luminance-sorted
// seeding, fixed iteration count. Every hypothesis extracted from the
// same image shares one palette result.
package palette

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/atelierhq/atelier/internal/types"
)

// Swatch is one clustered color with its share of sampled pixels
type Swatch struct {
	Hex    string  `json:"hex"`
	Weight float64 `json:"weight"` // fraction of samples in this cluster
}

const (
	// maxSamples caps how many pixels feed the clustering pass
	maxSamples = 4096
	// kmeansRounds is fixed so results never vary between runs
	kmeansRounds = 12
)

// Extract clusters the image's colors into n swatches, ordered by
// weight descending. n is clamped to [2,8].
func Extract(path string, n int) ([]Swatch, error) {
	if n < 2 {
		n = 2
	}
	if n > 8 {
		n = 8
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	samples := samplePixels(img)
	if len(samples) == 0 {
		return nil, fmt.Errorf("image has no pixels")
	}
	if n > len(samples) {
		n = len(samples)
	}

	centers := seedCenters(samples, n)
	assignments := make([]int, len(samples))

	for round := 0; round < kmeansRounds; round++ {
		for i, s := range samples {
			best, bestDist := 0, s.DistanceLab(centers[0])
			for j := 1; j < len(centers); j++ {
				if d := s.DistanceLab(centers[j]); d < bestDist {
					best, bestDist = j, d
				}
			}
			assignments[i] = best
		}

		sums := make([][3]float64, len(centers))
		counts := make([]int, len(centers))
		for i, s := range samples {
			l, a, b := s.Lab()
			c := assignments[i]
			sums[c][0] += l
			sums[c][1] += a
			sums[c][2] += b
			counts[c]++
		}
		for j := range centers {
			if counts[j] == 0 {
				continue // empty cluster keeps its seed
			}
			centers[j] = colorful.Lab(
				sums[j][0]/float64(counts[j]),
				sums[j][1]/float64(counts[j]),
				sums[j][2]/float64(counts[j]),
			).Clamped()
		}
	}

	counts := make([]int, len(centers))
	for _, a := range assignments {
		counts[a]++
	}

	swatches := make([]Swatch, 0, len(centers))
	for j, c := range centers {
		if counts[j] == 0 {
			continue
		}
		swatches = append(swatches, Swatch{
			Hex:    c.Hex(),
			Weight: float64(counts[j]) / float64(len(samples)),
		})
	}

	sort.Slice(swatches, func(i, j int) bool {
		if swatches[i].Weight != swatches[j].Weight {
			return swatches[i].Weight > swatches[j].Weight
		}
		return swatches[i].Hex < swatches[j].Hex // stable order for equal weights
	})
	return swatches, nil
}

// Block renders swatches as the palette dimension block of a style
// description
func Block(swatches []Swatch) types.StyleBlock {
	traits := make([]string, 0, len(swatches))
	for _, s := range swatches {
		traits = append(traits, fmt.Sprintf("%s (%.0f%%)", s.Hex, s.Weight*100))
	}
	return types.StyleBlock{
		Summary: fmt.Sprintf("measured palette of %d dominant colors", len(swatches)),
		Traits:  traits,
	}
}

// samplePixels walks the image with a stride chosen so at most
// maxSamples pixels are collected, in scanline order
func samplePixels(img image.Image) []colorful.Color {
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return nil
	}

	stride := 1
	for total/(stride*stride) > maxSamples {
		stride++
	}

	samples := make([]colorful.Color, 0, maxSamples)
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stride {
		for x := bounds.Min.X; x < bounds.Max.X; x += stride {
			c, ok := colorful.MakeColor(img.At(x, y))
			if ok {
				samples = append(samples, c)
			}
		}
	}
	return samples
}

// seedCenters picks initial cluster centers spread evenly across the
// luminance-sorted samples. Deterministic by construction.
func seedCenters(samples []colorful.Color, n int) []colorful.Color {
	sorted := make([]colorful.Color, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		li, _, _ := sorted[i].Lab()
		lj, _, _ := sorted[j].Lab()
		return li < lj
	})

	centers := make([]colorful.Color, n)
	if n == 1 {
		centers[0] = sorted[0]
		return centers
	}
	for i := 0; i < n; i++ {
		centers[i] = sorted[i*(len(sorted)-1)/(n-1)]
	}
	return centers
}
