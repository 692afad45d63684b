// Command wextctl drives Wireless Extensions requests against software radios.
package main

func main() {
	Execute()
}
