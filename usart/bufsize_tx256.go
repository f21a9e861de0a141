//go:build usart_txbuf256

package usart

const TxBufferSize = 256
