//go:build !goface

package detector

import "errors"

func newGoFace(string) (Detector, error) {
	return nil, errors.New("goface detector unavailable: rebuild with -tags goface")
}
