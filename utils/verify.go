package utils

import "fmt"

// SumHost is the plain sequential reference: out[i] = in1[i] + in2[i].
func SumHost(in1, in2, out []int32) {
	for i := range out {
		out[i] = in1[i] + in2[i]
	}
}

// VerifySum checks out against the sequential reference and reports the
// first mismatching index. A mismatch is a reported outcome for the caller
// to act on, not an abort.
func VerifySum(in1, in2, out []int32) error {
	for i := range out {
		if want := in1[i] + in2[i]; out[i] != want {
			return fmt.Errorf("mismatch at index %d: got %d, want %d", i, out[i], want)
		}
	}
	return nil
}
