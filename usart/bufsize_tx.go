//go:build !usart_txbuf256

package usart

// TxBufferSize is the capacity of every port's transmit ring. Build with
// -tags usart_txbuf256 for a 256-byte ring.
const TxBufferSize = 64
