//go:build !usart_rxbuf256

package usart

// RxBufferSize is the capacity of every port's receive ring. Build with
// -tags usart_rxbuf256 for a 256-byte ring.
const RxBufferSize = 64
