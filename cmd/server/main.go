package main

import "barqpix-backend/internal/app"

func main() {
	app.Run()
}
