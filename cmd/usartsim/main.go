// Command usartsim drives the usart driver against the simulated board:
// a loopback self-test, a pty bridge for host serial tools and a live
// per-port statistics view.
package main

func main() {
	Execute()
}
