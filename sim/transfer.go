package sim

import (
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"
)

// TransferParams are the four physical roles of the energy-transfer model.
type TransferParams struct {
	Amplitude       float64 `json:"amplitude"`
	CrossRelaxation float64 `json:"cross_relaxation"`
	Radiative       float64 `json:"radiative"`
	Offset          float64 `json:"offset"`
}

// Validate rejects non-finite values.
func (p TransferParams) Validate() error {
	for name, v := range map[string]float64{
		"amplitude":        p.Amplitude,
		"cross_relaxation": p.CrossRelaxation,
		"radiative":        p.Radiative,
		"offset":           p.Offset,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite, got %v", name, v)
		}
	}
	return nil
}

// EnergyTransfer evaluates
//
//	I(t) = A/N · Σ_i exp(−t·(Cr·r_i + Rad)) + c
//
// for every t in time, over the full radial vector. I(0) = A + c.
func EnergyTransfer(time, radial []float64, p TransferParams) []float64 {
	out := make([]float64, len(time))
	energyTransferRange(time, radial, p, out)
	return out
}

func energyTransferRange(time, radial []float64, p TransferParams, dst []float64) {
	scale := p.Amplitude / float64(len(radial))
	for j, t := range time {
		sum := 0.0
		for _, r := range radial {
			sum += math.Exp(-t * (p.CrossRelaxation*r + p.Radiative))
		}
		dst[j] = scale*sum + p.Offset
	}
}

// EnergyTransferParallel is EnergyTransfer with time samples spread across
// goroutines. Output is bit-identical to EnergyTransfer.
func EnergyTransferParallel(time, radial []float64, p TransferParams) []float64 {
	out := make([]float64, len(time))
	workers := runtime.NumCPU()
	block := (len(time) + workers - 1) / workers
	if block < 64 {
		block = 64
	}
	// Blocks cannot fail, so a plain WaitGroup suffices.
	var wg sync.WaitGroup
	for lo := 0; lo < len(time); lo += block {
		hi := min(lo+block, len(time))
		wg.Go(func() {
			energyTransferRange(time[lo:hi], radial, p, out[lo:hi])
		})
	}
	wg.Wait()
	return out
}

// ModelKind selects an EnergyTransfer implementation.
type ModelKind int

const (
	// ModelSerial evaluates time samples in one goroutine.
	ModelSerial ModelKind = iota
	// ModelParallel evaluates blocks of time samples concurrently.
	ModelParallel
)

var modelKindNames = map[ModelKind]string{
	ModelSerial:   "serial",
	ModelParallel: "parallel",
}

func (k ModelKind) String() string {
	if name, ok := modelKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ModelKind(%d)", int(k))
}

// ParseModelKind converts a name to a ModelKind. Empty selects ModelSerial.
func ParseModelKind(name string) (ModelKind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ModelSerial, nil
	}
	for k, n := range modelKindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown model %q (valid: serial, parallel)", name)
}

// ModelFunc evaluates the energy-transfer model.
type ModelFunc func(time, radial []float64, p TransferParams) []float64

// Func returns the implementation for k.
func (k ModelKind) Func() (ModelFunc, error) {
	switch k {
	case ModelSerial:
		return EnergyTransfer, nil
	case ModelParallel:
		return EnergyTransferParallel, nil
	default:
		return nil, fmt.Errorf("unknown model kind %d", int(k))
	}
}
