package common

import "github.com/chewxy/math32"

// Sigmoid maps a raw mask logit into the open interval (0, 1).
func Sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}
