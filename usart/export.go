// usart/export.go

package usart

import "github.com/jangala-dev/tinygo-usart/hal"

type Parity = hal.Parity

const (
	ParityNone = hal.ParityNone
	ParityEven = hal.ParityEven
	ParityOdd  = hal.ParityOdd
)
