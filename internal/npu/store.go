package npu

// potentialStore abstracts the membrane-potential representation so the two
// precision variants share one set of neuron dynamics. int8 trades range for
// a quarter of the memory, matching genome-declared low-precision areas.
type potentialStore interface {
	add(n int, p float32)
	get(n int) float32
	reset(n int)
	decay(n int, leak float32)
}

type f32Store struct {
	potentials []float32
}

func newF32Store(n int) *f32Store {
	return &f32Store{potentials: make([]float32, n)}
}

func (s *f32Store) add(n int, p float32) { s.potentials[n] += p }
func (s *f32Store) get(n int) float32    { return s.potentials[n] }
func (s *f32Store) reset(n int)          { s.potentials[n] = 0 }

func (s *f32Store) decay(n int, leak float32) {
	s.potentials[n] *= 1 - leak
}

// int8Scale maps quantized membrane potentials to float. Range is
// [-128/16, 127/16]; additions saturate instead of wrapping.
const int8Scale = 16

type int8Store struct {
	potentials []int8
}

func newInt8Store(n int) *int8Store {
	return &int8Store{potentials: make([]int8, n)}
}

func (s *int8Store) add(n int, p float32) {
	v := int32(s.potentials[n]) + int32(p*int8Scale)
	if v > 127 {
		v = 127
	} else if v < -128 {
		v = -128
	}
	s.potentials[n] = int8(v)
}

func (s *int8Store) get(n int) float32 {
	return float32(s.potentials[n]) / int8Scale
}

func (s *int8Store) reset(n int) { s.potentials[n] = 0 }

func (s *int8Store) decay(n int, leak float32) {
	s.potentials[n] = int8(float32(s.potentials[n]) * (1 - leak))
}
