package main

import fiata2dp "github.com/ivmarkov/fiat-a2dp"

func main() {
	fiata2dp.Main()
}
