// Package spectral estimates radially averaged power spectral densities of
// gridded fields.
package spectral

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/couchcryptid/precip-bench/internal/domain"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum is a 1-D power spectrum. Wavenumbers are in cycles per km and
// strictly increasing.
type Spectrum struct {
	Wavenumbers []float64
	Power       []float64
}

// Estimator computes the spectrum of a forecast record.
type Estimator interface {
	Spectrum(rec domain.ForecastRecord) (Spectrum, error)
}

// Radial averages |FFT|² over annuli of constant wavenumber, then over time.
type Radial struct{}

var errGridTooSmall = errors.New("grid too small for a spectrum")

// Spectrum implements Estimator.
func (Radial) Spectrum(rec domain.ForecastRecord) (Spectrum, error) {
	return RadialPSD(rec.Data, rec.XLength, rec.YLength)
}

// RadialPSD returns the time-averaged radial PSD of c, whose grid spans
// xLength by yLength km.
func RadialPSD(c domain.Cube, xLength, yLength float64) (Spectrum, error) {
	if !(xLength > 0) || !(yLength > 0) {
		return Spectrum{}, fmt.Errorf("spatial lengths must be positive, got %g x %g km", xLength, yLength)
	}
	nbins := min(c.Nx, c.Ny) / 2
	if nbins < 1 || c.T == 0 {
		return Spectrum{}, fmt.Errorf("%w: shape %v", errGridTooSmall, c.Shape())
	}

	dk := math.Max(1/xLength, 1/yLength)
	bins := make([]int, c.Ny*c.Nx)
	counts := make([]float64, nbins+1)
	for i := range c.Ny {
		ky := float64(freqIndex(i, c.Ny)) / yLength
		for j := range c.Nx {
			kx := float64(freqIndex(j, c.Nx)) / xLength
			b := int(math.Round(math.Hypot(kx, ky) / dk))
			if b > nbins {
				b = -1
			}
			bins[i*c.Nx+j] = b
			if b >= 0 {
				counts[b]++
			}
		}
	}

	cellArea := (xLength / float64(c.Nx)) * (yLength / float64(c.Ny))
	norm := cellArea / float64(c.Nx*c.Ny)
	power := make([]float64, nbins+1)
	f := newFFT2(c.Ny, c.Nx)
	for t := range c.T {
		coeffs := f.transform(c.Slice(t))
		for k, v := range coeffs {
			if b := bins[k]; b >= 0 {
				a := cmplx.Abs(v)
				power[b] += a * a * norm
			}
		}
	}

	s := Spectrum{
		Wavenumbers: make([]float64, nbins),
		Power:       make([]float64, nbins),
	}
	for b := 1; b <= nbins; b++ {
		s.Wavenumbers[b-1] = float64(b) * dk
		if counts[b] > 0 {
			s.Power[b-1] = power[b] / (counts[b] * float64(c.T))
		}
	}
	return s, nil
}

// freqIndex maps an FFT output index to its signed frequency index.
func freqIndex(i, n int) int {
	if i <= n/2 {
		return i
	}
	return i - n
}

// fft2 performs 2-D complex FFTs on row-major ny×nx real fields.
type fft2 struct {
	ny, nx     int
	rows, cols *fourier.CmplxFFT
	buf        []complex128
	line       []complex128
	col, colFT []complex128
}

func newFFT2(ny, nx int) *fft2 {
	return &fft2{
		ny:    ny,
		nx:    nx,
		rows:  fourier.NewCmplxFFT(nx),
		cols:  fourier.NewCmplxFFT(ny),
		buf:   make([]complex128, ny*nx),
		line:  make([]complex128, nx),
		col:   make([]complex128, ny),
		colFT: make([]complex128, ny),
	}
}

// transform returns the 2-D DFT of field. The result aliases internal
// storage and is only valid until the next call.
func (f *fft2) transform(field []float64) []complex128 {
	for i := range f.ny {
		for j := range f.nx {
			f.line[j] = complex(field[i*f.nx+j], 0)
		}
		f.rows.Coefficients(f.buf[i*f.nx:(i+1)*f.nx], f.line)
	}
	for j := range f.nx {
		for i := range f.ny {
			f.col[i] = f.buf[i*f.nx+j]
		}
		f.cols.Coefficients(f.colFT, f.col)
		for i := range f.ny {
			f.buf[i*f.nx+j] = f.colFT[i]
		}
	}
	return f.buf
}
