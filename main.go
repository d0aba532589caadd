/*
vkshadow renders the configured meshes with Vulkan while new meshes are
uploaded in the background.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/vkshadow/engine"
	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/testbed"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration")
	flag.Parse()

	config, err := engine.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	tb := testbed.NewTestGame(config)

	engine, err := engine.New(tb.Game)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := engine.Shutdown(); err != nil {
			core.LogError("shutdown: %s", err)
		}
	}()

	if err := engine.Initialize(); err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// the run loop owns the window and the device, so a signal only asks it to stop
	go func() {
		<-sigCh
		engine.RequestQuit()
	}()

	// run engine
	if err := engine.Run(); err != nil {
		panic(err)
	}
}
