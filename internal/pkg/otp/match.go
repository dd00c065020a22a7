package otp

// MatchTOTP checks code against the steps currentStep-skew .. currentStep+skew
// in ascending order and returns the first step that matches.
func MatchTOTP(secret []byte, code string, alg Algorithm, digits int, currentStep uint64, skew uint64) (uint64, bool, error) {
	first := uint64(0)
	if currentStep > skew {
		first = currentStep - skew
	}

	for step := first; step <= currentStep+skew; step++ {
		expected, err := ComputeCode(secret, step, alg, digits)
		if err != nil {
			return 0, false, err
		}
		if equalCode(expected, code) {
			return step, true, nil
		}
	}

	return 0, false, nil
}

// MatchHOTP checks code against counter .. counter+window and returns the
// offset k of the first match.
func MatchHOTP(secret []byte, code string, alg Algorithm, digits int, counter uint64, window uint64) (uint64, bool, error) {
	for k := uint64(0); k <= window; k++ {
		expected, err := ComputeCode(secret, counter+k, alg, digits)
		if err != nil {
			return 0, false, err
		}
		if equalCode(expected, code) {
			return k, true, nil
		}
	}

	return 0, false, nil
}
