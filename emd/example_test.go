package emd_test

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-emd/algorithms/hht"
	"github.com/RyanBlaney/sonido-emd/emd"
	"github.com/RyanBlaney/sonido-emd/logging"
)

func ExampleAnalyzer_Decompose() {
	// 10 Hz for one second
	x := make([]float64, 1000)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * 10 * float64(i) / 1000)
	}

	analyzer, err := emd.NewAnalyzer(nil)
	if err != nil {
		fmt.Println(err)
		return
	}
	analyzer = analyzer.WithLogger(&logging.NoOpLogger{})

	dec, err := analyzer.Decompose(x, 1000)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("IMFs:", dec.Result.NumIMFs())
	// Output: IMFs: 1
}

func ExampleAnalyzer_HilbertHuang() {
	x := make([]float64, 1000)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * 10 * float64(i) / 1000)
	}

	cfg := emd.DefaultConfig()
	cfg.Spectrum.ReturnSparse = true
	analyzer, err := emd.NewAnalyzer(cfg)
	if err != nil {
		fmt.Println(err)
		return
	}
	analyzer = analyzer.WithLogger(&logging.NoOpLogger{})

	dec, err := analyzer.Decompose(x, 1000)
	if err != nil {
		fmt.Println(err)
		return
	}

	freqBins, _ := hht.DefineBins(5, 55, 5, hht.ScaleLinear)
	spec, err := analyzer.HilbertHuang(dec, freqBins, nil)
	if err != nil {
		fmt.Println(err)
		return
	}

	marginal, _ := spec.Sparse.Marginal(hht.AxisFreq)
	peak := 0
	for i, v := range marginal {
		if v > marginal[peak] {
			peak = i
		}
	}
	fmt.Printf("peak: %.0f Hz\n", freqBins.Centres[peak])
	fmt.Printf("power: %.0f\n", spec.Sparse.Total())
	// Output:
	// peak: 10 Hz
	// power: 1000
}
