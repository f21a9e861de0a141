//go:build usart_rxbuf256

package usart

const RxBufferSize = 256
